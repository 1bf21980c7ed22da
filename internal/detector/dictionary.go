package detector

import (
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Entry is an operator-managed dictionary term. Terms may span
// multiple words and match anywhere in the text, with no word
// boundary requirement.
type Entry struct {
	Term          string `json:"term"`
	Category      string `json:"category"`
	CaseSensitive bool   `json:"caseSensitive"`
}

// DictionaryDetector matches dictionary terms with an Aho-Corasick
// automaton per case mode, leftmost-longest. Dictionary hits carry
// confidence 1.0 so no probabilistic layer can displace them.
type DictionaryDetector struct {
	sensitive    ahocorasick.AhoCorasick
	insensitive  ahocorasick.AhoCorasick
	sensitiveCat []string
	insensCat    []string
}

// NewDictionaryDetector builds the matchers from entries. Duplicate
// terms keep the first entry's category; case-insensitive duplicates
// are folded.
func NewDictionaryDetector(entries []Entry) *DictionaryDetector {
	d := &DictionaryDetector{}

	var sensTerms, insensTerms []string
	seenSens := map[string]bool{}
	seenInsens := map[string]bool{}
	for _, e := range entries {
		if e.Term == "" {
			continue
		}
		if e.CaseSensitive {
			if seenSens[e.Term] {
				continue
			}
			seenSens[e.Term] = true
			sensTerms = append(sensTerms, e.Term)
			d.sensitiveCat = append(d.sensitiveCat, e.Category)
		} else {
			folded := strings.ToLower(e.Term)
			if seenInsens[folded] {
				continue
			}
			seenInsens[folded] = true
			insensTerms = append(insensTerms, e.Term)
			d.insensCat = append(d.insensCat, e.Category)
		}
	}

	if len(sensTerms) > 0 {
		builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
			MatchKind: ahocorasick.LeftMostLongestMatch,
		})
		d.sensitive = builder.Build(sensTerms)
	}
	if len(insensTerms) > 0 {
		builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
			AsciiCaseInsensitive: true,
			MatchKind:            ahocorasick.LeftMostLongestMatch,
		})
		d.insensitive = builder.Build(insensTerms)
	}
	return d
}

// Detect returns dictionary detections for text, longest-wins across
// the two automatons with ties to the earlier start.
func (d *DictionaryDetector) Detect(text string) []Detection {
	if len(d.sensitiveCat) == 0 && len(d.insensCat) == 0 {
		return nil
	}
	b2r := byteToRuneIndex(text)
	var cands []Detection
	if len(d.sensitiveCat) > 0 {
		for _, m := range d.sensitive.FindAll(text) {
			cands = append(cands, d.detection(text, b2r, m, d.sensitiveCat))
		}
	}
	if len(d.insensCat) > 0 {
		for _, m := range d.insensitive.FindAll(text) {
			cands = append(cands, d.detection(text, b2r, m, d.insensCat))
		}
	}
	return Resolve(cands)
}

func (d *DictionaryDetector) detection(text string, b2r []int, m ahocorasick.Match, cats []string) Detection {
	return Detection{
		Start:      b2r[m.Start()],
		End:        b2r[m.End()],
		Category:   "DICTIONARY:" + cats[m.Pattern()],
		Confidence: 1.0,
		Text:       text[m.Start():m.End()],
		Detector:   KindDictionary,
	}
}
