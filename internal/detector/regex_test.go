package detector_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
)

func newRegex(t *testing.T) *detector.RegexDetector {
	t.Helper()
	return detector.NewRegexDetector(zap.NewNop())
}

func categories(ds []detector.Detection) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Category
	}
	return out
}

func TestRegex_Email(t *testing.T) {
	out := newRegex(t).Detect("reach me at john@acme.com today", "")

	require.Len(t, out, 1)
	assert.Equal(t, "EMAIL", out[0].Category)
	assert.Equal(t, "john@acme.com", out[0].Text)
	assert.Equal(t, 0.95, out[0].Confidence)
}

func TestRegex_CreditCardLuhnGate(t *testing.T) {
	valid := newRegex(t).Detect("card 4111 1111 1111 1111 on file", "")
	require.Len(t, valid, 1)
	assert.Equal(t, "CREDIT_CARD", valid[0].Category)
	assert.Equal(t, 0.98, valid[0].Confidence)

	invalid := newRegex(t).Detect("card 4111 1111 1111 1112 on file", "")
	assert.Empty(t, invalid)
}

func TestRegex_IPv4OctetGate(t *testing.T) {
	d := newRegex(t)

	out := d.Detect("host 192.168.0.1 up", "")
	require.Len(t, out, 1)
	assert.Equal(t, "IP_ADDRESS", out[0].Category)
	assert.Equal(t, 0.90, out[0].Confidence)

	assert.Empty(t, d.Detect("host 999.168.0.1 up", ""))
}

func TestRegex_LocaleFiltering(t *testing.T) {
	d := newRegex(t)
	// Valid AU tax file number.
	text := "TFN 123 456 782 lodged"

	au := d.Detect(text, "AU")
	require.Len(t, au, 1)
	assert.Equal(t, "AU_TFN", au[0].Category)

	// The same digits fail the IRD checksum, so NZ sees nothing.
	assert.Empty(t, d.Detect(text, "NZ"))
}

func TestRegex_NZLocaleScenario(t *testing.T) {
	out := newRegex(t).Detect("IRD 49091850 and NHS 943 476 5919", "NZ")

	require.Len(t, out, 1)
	assert.Equal(t, "NZ_IRD", out[0].Category)
	assert.Equal(t, "49091850", out[0].Text)
}

func TestRegex_UKNHSChecksum(t *testing.T) {
	d := newRegex(t)

	out := d.Detect("NHS 943 476 5919", "UK")
	require.Len(t, out, 1)
	assert.Equal(t, "UK_NHS", out[0].Category)

	assert.Empty(t, d.Detect("NHS 943 476 5918", "UK"))
}

func TestRegex_AUPhone(t *testing.T) {
	out := newRegex(t).Detect("call 0412 345 678 after lunch", "AU")

	require.Len(t, out, 1)
	assert.Equal(t, "AU_PHONE", out[0].Category)
	assert.Equal(t, "0412 345 678", out[0].Text)
}

func TestRegex_ContextualPatterns(t *testing.T) {
	d := newRegex(t)

	mrn := d.Detect("Patient MRN: AB12345 admitted", "")
	require.Len(t, mrn, 1)
	assert.Equal(t, "MRN", mrn[0].Category)
	assert.Equal(t, "AB12345", mrn[0].Text)

	dob := d.Detect("DOB: 12/03/1985 confirmed", "")
	require.Len(t, dob, 1)
	assert.Equal(t, "DOB", dob[0].Category)
	assert.Equal(t, "12/03/1985", dob[0].Text)

	// The bare number without context is not a finding.
	assert.Empty(t, d.Detect("reference AB12345 attached", ""))
}

func TestRegex_OverlapKeepsLongerSpan(t *testing.T) {
	out := newRegex(t).Detect("see https://user@example.com/path for details", "")

	require.Len(t, out, 1)
	assert.Equal(t, "URL", out[0].Category)
}

func TestRegex_NoRegionalCategoriesLeakAcrossLocales(t *testing.T) {
	samples := "SSN 856-45-6789, NHS 943 476 5919, TFN 123 456 782, IRD 49091850"

	for _, locale := range []string{"AU", "NZ", "UK", "US"} {
		out := newRegex(t).Detect(samples, locale)
		for _, cat := range categories(out) {
			for _, other := range []string{"AU", "NZ", "UK", "US"} {
				if other == locale {
					continue
				}
				assert.False(t, strings.HasPrefix(cat, other+"_"),
					"locale %s leaked category %s", locale, cat)
			}
		}
	}
}

func TestRegex_MACAndVIN(t *testing.T) {
	d := newRegex(t)

	mac := d.Detect("nic at 00:1A:2B:3C:4D:5E", "")
	require.Len(t, mac, 1)
	assert.Equal(t, "MAC_ADDRESS", mac[0].Category)

	vin := d.Detect("vehicle 1M8GDM9AXKP042788 recalled", "")
	require.Len(t, vin, 1)
	assert.Equal(t, "VIN", vin[0].Category)

	assert.Empty(t, d.Detect("vehicle 1M8GDM9A1KP042788 recalled", ""))
}
