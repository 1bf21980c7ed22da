package detector

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNERUnavailable is returned when the breaker is open, the model
// failed to load, or inference failed. The pipeline treats it as "no
// detections from this layer" and carries on.
var ErrNERUnavailable = errors.New("ner unavailable")

const (
	nerChunkSize    = 1000
	nerChunkOverlap = 200
)

// TokenPrediction is one model token returned by the inference
// service. Entity carries a BIO tag ("B-PER", "I-PER") or a bare
// label for pre-aggregated output; Start/End are rune offsets into
// the submitted chunk.
type TokenPrediction struct {
	Entity string  `json:"entity"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Word   string  `json:"word"`
}

// Inferencer abstracts the token-classification sidecar.
type Inferencer interface {
	Warmup(ctx context.Context, model string) error
	Classify(ctx context.Context, model, text string) ([]TokenPrediction, error)
}

// NERDetector chunks long input, sends each chunk to the inference
// service, merges BIO tags into entity spans, and maps the spans back
// to absolute offsets. The model warm-up is lazy and single-flight;
// every inference path runs behind the breaker.
type NERDetector struct {
	client  Inferencer
	breaker *Breaker
	log     *zap.Logger

	warm        singleflight.Group
	loadedModel atomic.Value
}

func NewNERDetector(client Inferencer, breaker *Breaker, log *zap.Logger) *NERDetector {
	if breaker == nil {
		breaker = NewBreaker(0, 0)
	}
	return &NERDetector{client: client, breaker: breaker, log: log}
}

// Breaker exposes the detector's breaker for stats reporting.
func (d *NERDetector) Breaker() *Breaker { return d.breaker }

// Detect runs NER over text and returns resolved detections. Spans
// whose averaged token score falls below minConfidence are dropped.
func (d *NERDetector) Detect(ctx context.Context, text, model string, minConfidence float64) ([]Detection, error) {
	if text == "" {
		return nil, nil
	}
	if !d.breaker.Allow() {
		return nil, ErrNERUnavailable
	}
	if err := d.ensureLoaded(ctx, model); err != nil {
		return nil, err
	}

	runes := []rune(text)
	best := make(map[[2]int]Detection)
	var order [][2]int

	for _, ch := range chunkRunes(runes, nerChunkSize, nerChunkOverlap) {
		preds, err := d.client.Classify(ctx, model, string(ch.text))
		if err != nil {
			d.breaker.Failure()
			d.log.Warn("ner inference failed", zap.Error(err))
			return nil, ErrNERUnavailable
		}
		d.breaker.Success()

		for _, sp := range mergeBIO(preds) {
			if sp.score < minConfidence {
				continue
			}
			key := [2]int{sp.start + ch.offset, sp.end + ch.offset}
			if cur, seen := best[key]; seen {
				// Same absolute region from an overlapping chunk:
				// higher confidence wins, ties keep the earlier
				// chunk's span.
				if sp.score > cur.Confidence {
					cur.Confidence = sp.score
					best[key] = cur
				}
				continue
			}
			start, end := key[0], key[1]
			if start < 0 || end > len(runes) || start >= end {
				continue
			}
			best[key] = Detection{
				Start:      start,
				End:        end,
				Category:   sp.category,
				Confidence: sp.score,
				Text:       string(runes[start:end]),
				Detector:   KindNER,
			}
			order = append(order, key)
		}
	}

	out := make([]Detection, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return Resolve(out), nil
}

func (d *NERDetector) ensureLoaded(ctx context.Context, model string) error {
	if loaded, _ := d.loadedModel.Load().(string); loaded == model {
		return nil
	}
	_, err, _ := d.warm.Do(model, func() (interface{}, error) {
		if loaded, _ := d.loadedModel.Load().(string); loaded == model {
			return nil, nil
		}
		if err := d.client.Warmup(ctx, model); err != nil {
			return nil, err
		}
		d.loadedModel.Store(model)
		return nil, nil
	})
	if err != nil {
		d.breaker.Failure()
		d.log.Warn("ner model load failed", zap.String("model", model), zap.Error(err))
		return ErrNERUnavailable
	}
	return nil
}

type runeChunk struct {
	text   []rune
	offset int
}

// chunkRunes splits long input into fixed windows with overlap so
// entities falling on a window edge are seen whole by the next
// window.
func chunkRunes(runes []rune, size, overlap int) []runeChunk {
	if len(runes) <= size {
		return []runeChunk{{text: runes, offset: 0}}
	}
	step := size - overlap
	var out []runeChunk
	for start := 0; ; start += step {
		end := start + size
		if end >= len(runes) {
			out = append(out, runeChunk{text: runes[start:], offset: start})
			return out
		}
		out = append(out, runeChunk{text: runes[start:end], offset: start})
	}
}

type mergedSpan struct {
	start    int
	end      int
	category string
	score    float64
}

// mergeBIO folds token-level predictions into entity spans. A B- tag
// opens a span, consecutive I- tags of the same label extend it
// (sub-word pieces coalesce through their character offsets), and
// anything else closes it. Span confidence is the mean token score.
func mergeBIO(preds []TokenPrediction) []mergedSpan {
	var out []mergedSpan
	var cur *mergedSpan
	sum, n := 0.0, 0

	flush := func() {
		if cur != nil && n > 0 {
			cur.score = sum / float64(n)
			out = append(out, *cur)
		}
		cur, sum, n = nil, 0, 0
	}

	for _, p := range preds {
		prefix, label := splitBIOTag(p.Entity)
		switch {
		case prefix == "O" || label == "":
			flush()
		case prefix == "I" && cur != nil && cur.category == mapEntityLabel(label):
			if p.End > cur.end {
				cur.end = p.End
			}
			sum += p.Score
			n++
		default:
			flush()
			cur = &mergedSpan{start: p.Start, end: p.End, category: mapEntityLabel(label)}
			sum, n = p.Score, 1
		}
	}
	flush()
	return out
}

func splitBIOTag(entity string) (prefix, label string) {
	if entity == "" || entity == "O" {
		return "O", ""
	}
	if len(entity) > 2 && entity[1] == '-' {
		return entity[:1], entity[2:]
	}
	return "B", entity
}

func mapEntityLabel(label string) string {
	switch strings.ToUpper(label) {
	case "PER", "PERSON":
		return "PERSON"
	case "LOC", "LOCATION", "GPE":
		return "LOCATION"
	case "ORG", "ORGANISATION", "ORGANIZATION":
		return "ORGANISATION"
	case "MISC":
		return "MISC"
	default:
		return strings.ToUpper(label)
	}
}
