package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
	"github.com/Bridge-Point/anonamoose-sub001/internal/events"
	"github.com/Bridge-Point/anonamoose-sub001/internal/metrics"
	"github.com/Bridge-Point/anonamoose-sub001/internal/store"
	"github.com/Bridge-Point/anonamoose-sub001/internal/token"
)

// RedactInput is one pipeline invocation. SessionID may be empty, in
// which case a fresh session id is minted and returned. Locale, when
// non-nil, overrides the settings locale for this call. Layers, when
// non-empty, restricts which enabled layers run ("dictionary", "ner",
// "regex", "names").
type RedactInput struct {
	Text      string
	SessionID string
	Locale    *string
	Layers    []string
}

// LayerStats carries per-layer surviving hit counts for one run.
type LayerStats struct {
	Dictionary int `json:"dictionary"`
	NER        int `json:"ner"`
	Regex      int `json:"regex"`
	Names      int `json:"names"`
}

// RedactStats is the per-run statistics block.
type RedactStats struct {
	Layers  LayerStats    `json:"layers"`
	Total   int           `json:"total"`
	Elapsed time.Duration `json:"elapsed"`
}

// RedactResult is the pipeline output.
type RedactResult struct {
	Sanitized string
	SessionID string
	Bindings  []store.TokenBinding
	Stats     RedactStats
}

// RedactionService is the four-layer redaction pipeline plus
// session-scoped hydration.
type RedactionService interface {
	Redact(ctx context.Context, in RedactInput) (RedactResult, error)
	Hydrate(ctx context.Context, text, sessionID string) (string, error)
}

type redactionService struct {
	holder   *SnapshotHolder
	store    store.Store
	ner      *detector.NERDetector
	regex    *detector.RegexDetector
	names    *detector.NameDetector
	ttl      time.Duration
	counters *metrics.Counters
	audit    *events.Publisher
	log      *zap.Logger
}

// NewRedactionService wires the pipeline. ner may be nil when no
// inference service is configured; the layer then reports no
// detections and everything else still runs.
func NewRedactionService(
	holder *SnapshotHolder,
	st store.Store,
	ner *detector.NERDetector,
	regex *detector.RegexDetector,
	names *detector.NameDetector,
	ttl time.Duration,
	counters *metrics.Counters,
	audit *events.Publisher,
	log *zap.Logger,
) RedactionService {
	return &redactionService{
		holder:   holder,
		store:    st,
		ner:      ner,
		regex:    regex,
		names:    names,
		ttl:      ttl,
		counters: counters,
		audit:    audit,
		log:      log,
	}
}

func (s *redactionService) Redact(ctx context.Context, in RedactInput) (RedactResult, error) {
	started := time.Now()
	s.counters.RedactCall()

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		return RedactResult{}, fmt.Errorf("%w: %q", store.ErrInvalidSessionID, in.SessionID)
	}

	snap := s.holder.Current()
	settings := snap.Settings

	locale := settings.Locale
	if in.Locale != nil {
		locale = *in.Locale
	}
	run := layerSet(settings, in.Layers)

	var mask detector.Mask
	var combined []detector.Detection
	var stats LayerStats

	// Tokens spliced by an earlier run are claimed up front so no layer
	// can re-detect inside them; redacting sanitized text is a no-op.
	prefix, suffix := snap.Tokens.Sentinels()
	for _, sp := range tokenRuneSpans(in.Text, prefix, suffix) {
		mask.ClaimSpan(sp[0], sp[1])
	}

	if run.dictionary && snap.Dictionary != nil {
		ds := mask.Filter(snap.Dictionary.Detect(in.Text))
		stats.Dictionary = len(ds)
		combined = append(combined, ds...)
		mask.Claim(ds)
	}
	if run.ner && s.ner != nil {
		ds, err := s.ner.Detect(ctx, in.Text, settings.NERModel, settings.NERMinConfidence)
		if err != nil {
			// Contained: the layer yields nothing and the rest of the
			// pipeline proceeds.
			if !errors.Is(err, detector.ErrNERUnavailable) {
				s.log.Warn("ner layer failed", zap.Error(err))
			}
		} else {
			ds = mask.Filter(ds)
			stats.NER = len(ds)
			combined = append(combined, ds...)
			mask.Claim(ds)
		}
	}
	if run.regex {
		ds := mask.Filter(s.regex.Detect(in.Text, locale))
		stats.Regex = len(ds)
		combined = append(combined, ds...)
		mask.Claim(ds)
	}
	if run.names {
		ds := mask.Filter(s.names.Detect(in.Text))
		stats.Names = len(ds)
		combined = append(combined, ds...)
	}

	final := detector.Resolve(combined)

	sanitized, bindings, minted, err := s.bind(ctx, snap, sessionID, in.Text, final)
	if err != nil {
		return RedactResult{}, err
	}
	s.counters.TokensMinted(minted)
	s.counters.LayerHits(stats.Dictionary, stats.NER, stats.Regex, stats.Names)

	result := RedactResult{
		Sanitized: sanitized,
		SessionID: sessionID,
		Bindings:  bindings,
		Stats: RedactStats{
			Layers:  stats,
			Total:   len(final),
			Elapsed: time.Since(started),
		},
	}
	if len(bindings) > 0 {
		s.audit.Redaction(events.RedactionEvent{
			SessionID:  sessionID,
			Detections: len(final),
			Layers: map[string]int{
				"dictionary": stats.Dictionary,
				"ner":        stats.NER,
				"regex":      stats.Regex,
				"names":      stats.Names,
			},
			ElapsedMS:  result.Stats.Elapsed.Milliseconds(),
			OccurredAt: time.Now().UTC(),
		})
	}
	return result, nil
}

// bind assigns a token to every final detection, reusing the session's
// existing token when the original value is already bound, and splices
// the tokens into the text in reverse span order so earlier indices
// stay valid.
func (s *redactionService) bind(ctx context.Context, snap *Snapshot, sessionID, text string, final []detector.Detection) (string, []store.TokenBinding, int, error) {
	if len(final) == 0 {
		return text, nil, 0, nil
	}

	// tokenizePlaceholders=false selects plain category placeholders:
	// irreversible, nothing is stored.
	if !snap.Settings.TokenizePlaceholders {
		runes := []rune(text)
		for i := len(final) - 1; i >= 0; i-- {
			d := final[i]
			placeholder := []rune("[" + d.Category + "]")
			spliced := make([]rune, 0, len(runes)+len(placeholder))
			spliced = append(spliced, runes[:d.Start]...)
			spliced = append(spliced, placeholder...)
			spliced = append(spliced, runes[d.End:]...)
			runes = spliced
		}
		return string(runes), nil, 0, nil
	}

	existing, err := s.store.Retrieve(ctx, sessionID)
	if err != nil {
		return "", nil, 0, err
	}
	byOriginal := map[string]string{}
	inUse := map[string]bool{}
	if existing != nil {
		for _, b := range existing.Bindings {
			byOriginal[b.Original] = b.Token
			inUse[b.Token] = true
		}
	}

	minted := 0
	tokens := make([]string, len(final))
	var fresh []store.TokenBinding
	for i, d := range final {
		if tok, ok := byOriginal[d.Text]; ok {
			tokens[i] = tok
			continue
		}
		tok := snap.Tokens.Mint(func(t string) bool { return inUse[t] })
		inUse[tok] = true
		byOriginal[d.Text] = tok
		tokens[i] = tok
		minted++
		fresh = append(fresh, store.TokenBinding{
			Token:        tok,
			Original:     d.Text,
			DetectorKind: string(d.Detector),
			Category:     d.Category,
		})
	}

	runes := []rune(text)
	for i := len(final) - 1; i >= 0; i-- {
		d := final[i]
		spliced := make([]rune, 0, len(runes)+len(tokens[i]))
		spliced = append(spliced, runes[:d.Start]...)
		spliced = append(spliced, []rune(tokens[i])...)
		spliced = append(spliced, runes[d.End:]...)
		runes = spliced
	}
	sanitized := string(runes)

	if len(fresh) > 0 {
		if err := s.store.Store(ctx, sessionID, fresh, s.ttl); err != nil {
			return "", nil, 0, err
		}
		// A concurrent call on the same session may have bound one of
		// these originals first. The merge keeps the earlier token, so
		// re-read the session and swap any losing mints out of the
		// spliced text.
		stored, err := s.store.Retrieve(ctx, sessionID)
		if err != nil {
			return "", nil, 0, err
		}
		if stored != nil {
			winner := make(map[string]string, len(stored.Bindings))
			for _, b := range stored.Bindings {
				winner[b.Original] = b.Token
			}
			for i, d := range final {
				if tok, ok := winner[d.Text]; ok && tok != tokens[i] {
					sanitized = strings.ReplaceAll(sanitized, tokens[i], tok)
					tokens[i] = tok
				}
			}
		}
	}

	// The returned bindings cover every detection of this run, reused
	// tokens included, so callers can report token↔category pairs.
	all := make([]store.TokenBinding, len(final))
	for i, d := range final {
		all[i] = store.TokenBinding{
			Token:        tokens[i],
			Original:     d.Text,
			DetectorKind: string(d.Detector),
			Category:     d.Category,
		}
	}
	return sanitized, all, minted, nil
}

// tokenRuneSpans locates well-formed tokens in text and converts their
// byte offsets to the rune spans the detection mask works in.
func tokenRuneSpans(text string, prefix, suffix rune) [][2]int {
	matches := token.Scan(text, prefix, suffix)
	if len(matches) == 0 {
		return nil
	}
	out := make([][2]int, len(matches))
	byteAt, runeAt := 0, 0
	advance := func(to int) int {
		for byteAt < to {
			_, w := utf8.DecodeRuneInString(text[byteAt:])
			byteAt += w
			runeAt++
		}
		return runeAt
	}
	for i, m := range matches {
		out[i] = [2]int{advance(m.Start), advance(m.End)}
	}
	return out
}

func (s *redactionService) Hydrate(ctx context.Context, text, sessionID string) (string, error) {
	s.counters.HydrateCall()
	out, err := s.store.Hydrate(ctx, text, sessionID)
	if err != nil {
		return "", err
	}
	if out != text {
		s.audit.Hydration(events.HydrationEvent{SessionID: sessionID, OccurredAt: time.Now().UTC()})
	}
	return out, nil
}

type layers struct {
	dictionary, ner, regex, names bool
}

// layerSet intersects the settings-enabled layers with an optional
// per-call restriction list.
func layerSet(s Settings, requested []string) layers {
	run := layers{
		dictionary: s.EnableDictionary,
		ner:        s.EnableNER,
		regex:      s.EnableRegex,
		names:      s.EnableNames,
	}
	if len(requested) == 0 {
		return run
	}
	pick := layers{}
	for _, name := range requested {
		switch name {
		case "dictionary":
			pick.dictionary = run.dictionary
		case "ner":
			pick.ner = run.ner
		case "regex":
			pick.regex = run.regex
		case "names":
			pick.names = run.names
		}
	}
	return pick
}
