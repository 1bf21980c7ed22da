// Package service holds the gateway's business logic: the redaction
// pipeline, the settings/dictionary services, and the immutable
// configuration snapshots the detectors read.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
	"github.com/Bridge-Point/anonamoose-sub001/internal/store"
	"github.com/Bridge-Point/anonamoose-sub001/internal/token"
)

// Settings are the operator-tunable knobs. The JSON keys are the wire
// names used by the management API and the settings table.
type Settings struct {
	EnableDictionary     bool    `json:"enableDictionary"`
	EnableRegex          bool    `json:"enableRegex"`
	EnableNames          bool    `json:"enableNames"`
	EnableNER            bool    `json:"enableNER"`
	NERModel             string  `json:"nerModel"`
	NERMinConfidence     float64 `json:"nerMinConfidence"`
	TokenizePlaceholders bool    `json:"tokenizePlaceholders"`
	PlaceholderPrefix    string  `json:"placeholderPrefix"`
	PlaceholderSuffix    string  `json:"placeholderSuffix"`
	Locale               string  `json:"locale"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		EnableDictionary:     true,
		EnableRegex:          true,
		EnableNames:          true,
		EnableNER:            true,
		NERModel:             "dslim/bert-base-NER",
		NERMinConfidence:     0.6,
		TokenizePlaceholders: true,
		PlaceholderPrefix:    string(token.DefaultOpen),
		PlaceholderSuffix:    string(token.DefaultClose),
	}
}

// Sentinels returns the placeholder delimiter runes, falling back to
// the defaults when a stored value is empty or not a single rune.
func (s Settings) Sentinels() (prefix, suffix rune) {
	prefix, suffix = token.DefaultOpen, token.DefaultClose
	if r := []rune(s.PlaceholderPrefix); len(r) == 1 {
		prefix = r[0]
	}
	if r := []rune(s.PlaceholderSuffix); len(r) == 1 {
		suffix = r[0]
	}
	return prefix, suffix
}

var validLocales = map[string]bool{"": true, "AU": true, "NZ": true, "UK": true, "US": true}

// applyPatch overlays raw JSON values onto s, validating each key.
// Unknown keys are rejected so typos do not silently disappear into
// the settings table.
func applyPatch(s Settings, patch map[string]json.RawMessage) (Settings, error) {
	for key, raw := range patch {
		var err error
		switch key {
		case "enableDictionary":
			err = json.Unmarshal(raw, &s.EnableDictionary)
		case "enableRegex":
			err = json.Unmarshal(raw, &s.EnableRegex)
		case "enableNames":
			err = json.Unmarshal(raw, &s.EnableNames)
		case "enableNER":
			err = json.Unmarshal(raw, &s.EnableNER)
		case "nerModel":
			err = json.Unmarshal(raw, &s.NERModel)
		case "nerMinConfidence":
			err = json.Unmarshal(raw, &s.NERMinConfidence)
			if err == nil && (s.NERMinConfidence < 0 || s.NERMinConfidence > 1) {
				err = fmt.Errorf("must be in [0,1]")
			}
		case "tokenizePlaceholders":
			err = json.Unmarshal(raw, &s.TokenizePlaceholders)
		case "placeholderPrefix":
			err = json.Unmarshal(raw, &s.PlaceholderPrefix)
		case "placeholderSuffix":
			err = json.Unmarshal(raw, &s.PlaceholderSuffix)
		case "locale":
			err = json.Unmarshal(raw, &s.Locale)
			if err == nil && !validLocales[s.Locale] {
				err = fmt.Errorf("unknown locale %q", s.Locale)
			}
		default:
			return s, fmt.Errorf("%w: unknown setting %q", ErrInvalidInput, key)
		}
		if err != nil {
			return s, fmt.Errorf("%w: setting %q: %v", ErrInvalidInput, key, err)
		}
	}
	return s, nil
}

// Snapshot is the immutable bundle detectors read at layer entry:
// settings plus the structures rebuilt when they change. Publishing a
// new snapshot swaps one pointer, so in-flight requests keep a
// consistent view.
type Snapshot struct {
	Settings   Settings
	Dictionary *detector.DictionaryDetector
	Tokens     *token.Generator
}

// SnapshotHolder owns the current snapshot pointer.
type SnapshotHolder struct {
	p atomic.Pointer[Snapshot]
}

// NewSnapshotHolder builds and publishes the initial snapshot.
func NewSnapshotHolder(settings Settings, entries []detector.Entry) *SnapshotHolder {
	h := &SnapshotHolder{}
	prefix, suffix := settings.Sentinels()
	h.p.Store(&Snapshot{
		Settings:   settings,
		Dictionary: detector.NewDictionaryDetector(entries),
		Tokens:     token.New(prefix, suffix),
	})
	return h
}

// Current returns the live snapshot.
func (h *SnapshotHolder) Current() *Snapshot { return h.p.Load() }

func (h *SnapshotHolder) publish(s *Snapshot) { h.p.Store(s) }

// ── settings service ─────────────────────────────────────────────────────

// SettingsRepo is the persistence surface the settings service needs.
type SettingsRepo interface {
	LoadSettings(ctx context.Context) (map[string]json.RawMessage, error)
	SaveSetting(ctx context.Context, key string, value json.RawMessage) error
}

type SettingsService interface {
	Get(ctx context.Context) Settings
	// Update applies a partial settings map, persists the changed
	// keys, and publishes a new snapshot.
	Update(ctx context.Context, patch map[string]json.RawMessage) (Settings, error)
}

type settingsService struct {
	repo   SettingsRepo
	holder *SnapshotHolder
	store  store.Store
	log    *zap.Logger

	// mu serializes snapshot rebuilds; readers never take it.
	mu sync.Mutex
}

// NewSettingsService wires the settings surface. st may be nil when no
// rehydration store needs to track sentinel changes.
func NewSettingsService(repo SettingsRepo, holder *SnapshotHolder, st store.Store, log *zap.Logger) SettingsService {
	return &settingsService{repo: repo, holder: holder, store: st, log: log}
}

// LoadStoredSettings overlays the persisted settings onto the
// defaults. Used once at bootstrap, before the holder exists.
func LoadStoredSettings(ctx context.Context, repo SettingsRepo) (Settings, error) {
	stored, err := repo.LoadSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	return applyPatch(DefaultSettings(), stored)
}

func (s *settingsService) Get(context.Context) Settings {
	return s.holder.Current().Settings
}

func (s *settingsService) Update(ctx context.Context, patch map[string]json.RawMessage) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.holder.Current()
	next, err := applyPatch(cur.Settings, patch)
	if err != nil {
		return Settings{}, err
	}
	for key, raw := range patch {
		if err := s.repo.SaveSetting(ctx, key, raw); err != nil {
			return Settings{}, err
		}
	}

	snap := &Snapshot{Settings: next, Dictionary: cur.Dictionary, Tokens: cur.Tokens}
	if next.PlaceholderPrefix != cur.Settings.PlaceholderPrefix ||
		next.PlaceholderSuffix != cur.Settings.PlaceholderSuffix {
		prefix, suffix := next.Sentinels()
		snap.Tokens = token.New(prefix, suffix)
		// The store scans with the same delimiters it hydrates, so the
		// change has to reach it too. Sessions written under the old
		// sentinels stop hydrating from here on.
		if s.store != nil {
			s.store.SetSentinels(prefix, suffix)
		}
	}
	s.holder.publish(snap)

	s.log.Info("settings updated", zap.Int("keys", len(patch)))
	return next, nil
}

// ── dictionary service ───────────────────────────────────────────────────

// DictionaryRepo is the persistence surface the dictionary service
// needs.
type DictionaryRepo interface {
	ListDictionary(ctx context.Context) ([]detector.Entry, error)
	AddDictionaryEntry(ctx context.Context, e detector.Entry) error
	RemoveDictionaryEntry(ctx context.Context, term string) (bool, error)
}

type DictionaryService interface {
	List(ctx context.Context) ([]detector.Entry, error)
	Add(ctx context.Context, e detector.Entry) error
	Remove(ctx context.Context, term string) error
}

type dictionaryService struct {
	repo   DictionaryRepo
	holder *SnapshotHolder
	log    *zap.Logger

	mu sync.Mutex
}

func NewDictionaryService(repo DictionaryRepo, holder *SnapshotHolder, log *zap.Logger) DictionaryService {
	return &dictionaryService{repo: repo, holder: holder, log: log}
}

func (s *dictionaryService) List(ctx context.Context) ([]detector.Entry, error) {
	return s.repo.ListDictionary(ctx)
}

func (s *dictionaryService) Add(ctx context.Context, e detector.Entry) error {
	if e.Term == "" {
		return fmt.Errorf("%w: term is required", ErrInvalidInput)
	}
	if e.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if err := s.repo.AddDictionaryEntry(ctx, e); err != nil {
		return err
	}
	return s.rebuild(ctx)
}

func (s *dictionaryService) Remove(ctx context.Context, term string) error {
	removed, err := s.repo.RemoveDictionaryEntry(ctx, term)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: dictionary term %q", ErrNotFound, term)
	}
	return s.rebuild(ctx)
}

// rebuild republishes the snapshot with a matcher compiled from the
// current table contents.
func (s *dictionaryService) rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.repo.ListDictionary(ctx)
	if err != nil {
		return err
	}
	cur := s.holder.Current()
	s.holder.publish(&Snapshot{
		Settings:   cur.Settings,
		Dictionary: detector.NewDictionaryDetector(entries),
		Tokens:     cur.Tokens,
	})
	s.log.Info("dictionary matcher rebuilt", zap.Int("terms", len(entries)))
	return nil
}
