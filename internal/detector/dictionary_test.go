package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
)

func TestDictionary_CaseInsensitiveMultiWord(t *testing.T) {
	d := detector.NewDictionaryDetector([]detector.Entry{
		{Term: "Acme Corp", Category: "ORG"},
	})

	out := d.Detect("contracts with acme corp and ACME CORP pending")

	require.Len(t, out, 2)
	for _, det := range out {
		assert.Equal(t, "DICTIONARY:ORG", det.Category)
		assert.Equal(t, 1.0, det.Confidence)
		assert.Equal(t, detector.KindDictionary, det.Detector)
	}
	assert.Equal(t, "acme corp", out[0].Text)
	assert.Equal(t, "ACME CORP", out[1].Text)
}

func TestDictionary_CaseSensitiveTerm(t *testing.T) {
	d := detector.NewDictionaryDetector([]detector.Entry{
		{Term: "ACME", Category: "ORG", CaseSensitive: true},
	})

	assert.Empty(t, d.Detect("lowercase acme is not a hit"))

	out := d.Detect("but ACME is")
	require.Len(t, out, 1)
	assert.Equal(t, "ACME", out[0].Text)
}

func TestDictionary_LongestWinsAcrossCaseModes(t *testing.T) {
	d := detector.NewDictionaryDetector([]detector.Entry{
		{Term: "John", Category: "NAME", CaseSensitive: true},
		{Term: "john smith", Category: "FULL_NAME"},
	})

	out := d.Detect("ticket raised by John Smith today")

	require.Len(t, out, 1)
	assert.Equal(t, "DICTIONARY:FULL_NAME", out[0].Category)
	assert.Equal(t, "John Smith", out[0].Text)
}

func TestDictionary_NoWordBoundaryRequirement(t *testing.T) {
	d := detector.NewDictionaryDetector([]detector.Entry{
		{Term: "secret", Category: "CODEWORD"},
	})

	out := d.Detect("topsecretvalue")

	require.Len(t, out, 1)
	assert.Equal(t, "secret", out[0].Text)
}

func TestDictionary_RuneOffsetsWithMultibyteText(t *testing.T) {
	d := detector.NewDictionaryDetector([]detector.Entry{
		{Term: "Projekt Grün", Category: "PROJECT"},
	})

	text := "über das Projekt Grün sprechen"
	out := d.Detect(text)

	require.Len(t, out, 1)
	runes := []rune(text)
	assert.Equal(t, "Projekt Grün", string(runes[out[0].Start:out[0].End]))
}

func TestDictionary_EmptyEntries(t *testing.T) {
	d := detector.NewDictionaryDetector(nil)
	assert.Nil(t, d.Detect("anything at all"))
}
