// Package detector implements the four detection layers of the
// redaction pipeline: dictionary, NER, regex, and first names. All
// layers produce Detections over rune indices so multi-byte
// code-points never skew spans.
package detector

import (
	"sort"
	"unicode/utf8"
)

// Kind identifies the layer that produced a detection.
type Kind string

const (
	KindDictionary Kind = "dictionary"
	KindNER        Kind = "ner"
	KindRegex      Kind = "regex"
	KindNames      Kind = "names"
)

// Detection is one claimed span of PII. Start and End are half-open
// rune indices into the input text; spans are never empty.
type Detection struct {
	Start      int
	End        int
	Category   string
	Confidence float64
	Text       string
	Detector   Kind
}

func (d Detection) length() int { return d.End - d.Start }

func (d Detection) overlaps(o Detection) bool {
	return d.Start < o.End && o.Start < d.End
}

// Resolve enforces pairwise non-overlap over a candidate list. Sort
// order is (start, -length); a linear scan accepts each candidate
// whose start clears the last accepted end, and on conflict the
// longer span wins, ties going to the earlier start and then to the
// higher confidence.
func Resolve(ds []Detection) []Detection {
	if len(ds) <= 1 {
		return ds
	}
	sorted := make([]Detection, len(ds))
	copy(sorted, ds)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		if sorted[i].length() != sorted[j].length() {
			return sorted[i].length() > sorted[j].length()
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	out := sorted[:0:0]
	for _, d := range sorted {
		if len(out) == 0 || d.Start >= out[len(out)-1].End {
			out = append(out, d)
			continue
		}
		last := out[len(out)-1]
		if d.length() > last.length() {
			// The replacement starts at or after last.Start, so it
			// cannot reach back into the span accepted before it.
			out[len(out)-1] = d
		}
	}
	return out
}

// Mask is the set of spans already claimed by earlier pipeline
// layers. Later layers drop any detection intersecting a claimed
// span.
type Mask struct {
	spans [][2]int
}

// Claim records the spans of ds as taken.
func (m *Mask) Claim(ds []Detection) {
	for _, d := range ds {
		m.spans = append(m.spans, [2]int{d.Start, d.End})
	}
	sort.Slice(m.spans, func(i, j int) bool { return m.spans[i][0] < m.spans[j][0] })
}

// ClaimSpan records one span as taken.
func (m *Mask) ClaimSpan(start, end int) {
	m.spans = append(m.spans, [2]int{start, end})
	sort.Slice(m.spans, func(i, j int) bool { return m.spans[i][0] < m.spans[j][0] })
}

// Blocked reports whether [start,end) intersects any claimed span.
func (m *Mask) Blocked(start, end int) bool {
	i := sort.Search(len(m.spans), func(i int) bool { return m.spans[i][1] > start })
	return i < len(m.spans) && m.spans[i][0] < end
}

// Filter returns the detections in ds that do not touch a claimed
// span.
func (m *Mask) Filter(ds []Detection) []Detection {
	if len(m.spans) == 0 {
		return ds
	}
	out := ds[:0:0]
	for _, d := range ds {
		if !m.Blocked(d.Start, d.End) {
			out = append(out, d)
		}
	}
	return out
}

// byteToRuneIndex builds a byte-offset → rune-offset table for s,
// with an entry for len(s) so half-open span ends convert too.
func byteToRuneIndex(s string) []int {
	idx := make([]int, len(s)+1)
	n := 0
	for i := 0; i < len(s); {
		_, w := utf8.DecodeRuneInString(s[i:])
		for k := 0; k < w; k++ {
			idx[i+k] = n
		}
		i += w
		n++
	}
	idx[len(s)] = n
	return idx
}
