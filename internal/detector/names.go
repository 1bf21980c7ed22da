package detector

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// Confidence per frequency class; class 0 is the most common tier.
var nameClassConfidence = [3]float64{0.85, 0.70, 0.50}

// NameDetector is the last pipeline layer: a whole-word,
// case-insensitive scan for given names the NER layer missed. Entries
// that double as common English words are suppressed.
type NameDetector struct {
	class map[string]int
	stop  map[string]struct{}
}

// NewNameDetector builds the detector from the shipped gazetteer.
func NewNameDetector() *NameDetector {
	names := make(map[string]int, 512)
	for cls, list := range firstNamesByClass {
		for _, n := range list {
			if _, ok := names[n]; !ok {
				names[n] = cls
			}
		}
	}
	return NewNameDetectorWith(names)
}

// NewNameDetectorWith builds the detector from an explicit name →
// class map, keeping the shipped common-word suppression.
func NewNameDetectorWith(names map[string]int) *NameDetector {
	stop := make(map[string]struct{}, len(commonWords))
	for _, w := range commonWords {
		stop[w] = struct{}{}
	}
	return &NameDetector{class: names, stop: stop}
}

// LoadNames parses an operator-supplied gazetteer, one name per line,
// optionally suffixed with ",<class>" (0–2). Blank lines and lines
// starting with # are skipped.
func LoadNames(r io.Reader) (map[string]int, error) {
	names := make(map[string]int)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		name := raw
		cls := 1
		if i := strings.IndexByte(raw, ','); i >= 0 {
			name = strings.TrimSpace(raw[:i])
			n, err := strconv.Atoi(strings.TrimSpace(raw[i+1:]))
			if err != nil || n < 0 || n > 2 {
				return nil, fmt.Errorf("names list line %d: bad class %q", line, raw[i+1:])
			}
			cls = n
		}
		if name == "" {
			continue
		}
		folded := strings.ToLower(name)
		if existing, ok := names[folded]; !ok || cls < existing {
			names[folded] = cls
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("names list: %w", err)
	}
	return names, nil
}

// Detect scans text for whole-word gazetteer hits. Word boundaries
// follow Unicode letter runs, so the scan is rune-correct for
// accented names.
func (d *NameDetector) Detect(text string) []Detection {
	if len(d.class) == 0 {
		return nil
	}
	var out []Detection
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		if !unicode.IsLetter(runes[i]) {
			i++
			continue
		}
		start := i
		for i < len(runes) && unicode.IsLetter(runes[i]) {
			i++
		}
		word := string(runes[start:i])
		folded := strings.ToLower(word)
		if _, stopped := d.stop[folded]; stopped {
			continue
		}
		cls, ok := d.class[folded]
		if !ok {
			continue
		}
		out = append(out, Detection{
			Start:      start,
			End:        i,
			Category:   "PERSON",
			Confidence: nameClassConfidence[cls],
			Text:       word,
			Detector:   KindNames,
		})
	}
	return out
}
