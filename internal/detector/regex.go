package detector

import (
	"go.uber.org/zap"
)

// RegexDetector runs the pattern table against input text with
// locale filtering, checksum gating, and within-layer overlap
// resolution.
type RegexDetector struct {
	patterns []pattern
	log      *zap.Logger
}

func NewRegexDetector(log *zap.Logger) *RegexDetector {
	return &RegexDetector{patterns: patternTable, log: log}
}

// Detect returns the resolved regex-layer detections for text.
// locale is one of AU, NZ, UK, US, or empty for no regional
// filtering.
func (d *RegexDetector) Detect(text, locale string) []Detection {
	b2r := byteToRuneIndex(text)
	var cands []Detection
	for i := range d.patterns {
		p := &d.patterns[i]
		if locale != "" && p.Region != "" && p.Region != locale {
			continue
		}
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if p.Group > 0 {
				start, end = loc[2*p.Group], loc[2*p.Group+1]
				if start < 0 || start == end {
					continue
				}
			}
			match := text[start:end]
			if p.Validate != nil && !d.validate(p, match) {
				continue
			}
			cands = append(cands, Detection{
				Start:      b2r[start],
				End:        b2r[end],
				Category:   p.Category,
				Confidence: p.Confidence,
				Text:       match,
				Detector:   KindRegex,
			})
		}
	}
	return Resolve(cands)
}

// validate runs a pattern's validator with panic containment. A
// panicking validator is logged and treated as a non-match so one bad
// rule cannot abort the pipeline.
func (d *RegexDetector) validate(p *pattern, match string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			d.log.Error("pattern validator fault",
				zap.String("category", p.Category),
				zap.Any("panic", r),
			)
		}
	}()
	return p.Validate(match)
}
