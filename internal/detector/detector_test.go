package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
)

func det(start, end int, category string, conf float64) detector.Detection {
	return detector.Detection{
		Start:      start,
		End:        end,
		Category:   category,
		Confidence: conf,
		Detector:   detector.KindRegex,
	}
}

func TestResolve_DisjointSortedByStart(t *testing.T) {
	in := []detector.Detection{
		det(10, 15, "B", 0.9),
		det(0, 5, "A", 0.9),
	}
	out := detector.Resolve(in)

	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Category)
	assert.Equal(t, "B", out[1].Category)
}

func TestResolve_LongerWinsOnOverlap(t *testing.T) {
	in := []detector.Detection{
		det(0, 4, "SHORT", 0.99),
		det(2, 12, "LONG", 0.70),
	}
	out := detector.Resolve(in)

	require.Len(t, out, 1)
	assert.Equal(t, "LONG", out[0].Category)
}

func TestResolve_NestedSpanDropped(t *testing.T) {
	in := []detector.Detection{
		det(0, 20, "OUTER", 0.8),
		det(5, 10, "INNER", 0.99),
	}
	out := detector.Resolve(in)

	require.Len(t, out, 1)
	assert.Equal(t, "OUTER", out[0].Category)
}

func TestResolve_TieSameSpanHigherConfidence(t *testing.T) {
	in := []detector.Detection{
		det(0, 8, "LOW", 0.70),
		det(0, 8, "HIGH", 0.95),
	}
	out := detector.Resolve(in)

	require.Len(t, out, 1)
	assert.Equal(t, "HIGH", out[0].Category)
}

func TestResolve_EqualLengthEarlierStartWins(t *testing.T) {
	in := []detector.Detection{
		det(3, 8, "LATER", 0.99),
		det(0, 5, "EARLIER", 0.50),
	}
	out := detector.Resolve(in)

	require.Len(t, out, 1)
	assert.Equal(t, "EARLIER", out[0].Category)
}

func TestResolve_OutputIsPairwiseDisjoint(t *testing.T) {
	in := []detector.Detection{
		det(0, 10, "A", 0.9),
		det(5, 9, "B", 0.9),
		det(8, 20, "C", 0.9),
		det(19, 25, "D", 0.9),
		det(30, 31, "E", 0.9),
	}
	out := detector.Resolve(in)

	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i].Start, out[i-1].End,
			"spans %d and %d overlap", i-1, i)
	}
}

func TestMask_FilterDropsClaimedSpans(t *testing.T) {
	var m detector.Mask
	m.Claim([]detector.Detection{det(5, 10, "CLAIMED", 1.0)})

	in := []detector.Detection{
		det(0, 5, "BEFORE", 0.9),   // adjacent on the left, kept
		det(8, 12, "OVERLAP", 0.9), // intersects, dropped
		det(10, 14, "AFTER", 0.9),  // adjacent on the right, kept
	}
	out := m.Filter(in)

	require.Len(t, out, 2)
	assert.Equal(t, "BEFORE", out[0].Category)
	assert.Equal(t, "AFTER", out[1].Category)
}

func TestMask_BlockedAcrossMultipleClaims(t *testing.T) {
	var m detector.Mask
	m.Claim([]detector.Detection{det(0, 3, "A", 1.0)})
	m.Claim([]detector.Detection{det(10, 15, "B", 1.0)})

	assert.True(t, m.Blocked(2, 5))
	assert.True(t, m.Blocked(14, 20))
	assert.False(t, m.Blocked(3, 10))
	assert.False(t, m.Blocked(15, 16))
}
