// Package store implements the session-keyed rehydration store: the
// authoritative mapping from minted tokens back to their original
// values. Two backends sit behind one interface, an in-process map and
// a Redis driver; sessions are TTL-bounded and need not survive a
// restart.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Bridge-Point/anonamoose-sub001/internal/token"
)

var (
	// ErrInvalidSessionID is returned by Store when the session id is
	// not a UUID. Read paths return nil/false instead of erroring.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrBackend wraps remote-store failures that persist after a
	// retry. It is surfaced to callers only on the hydrate path, where
	// silently returning un-hydrated text would be a correctness bug.
	ErrBackend = errors.New("store backend error")
)

// TokenBinding maps one minted token to the original value it
// replaced.
type TokenBinding struct {
	Token        string            `json:"token"`
	Original     string            `json:"original"`
	DetectorKind string            `json:"detectorKind"`
	Category     string            `json:"category"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Session is a TTL-bounded, insertion-ordered collection of bindings.
type Session struct {
	ID             string         `json:"sessionId"`
	Bindings       []TokenBinding `json:"bindings"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastAccessedAt time.Time      `json:"lastAccessedAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`
}

// Expired reports whether the session's TTL has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Summary is the listing shape returned by AllSessions and Search.
type Summary struct {
	ID           string    `json:"sessionId"`
	BindingCount int       `json:"bindingCount"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Stats describes the backing storage for the stats endpoint.
type Stats struct {
	Backend  string `json:"backend"`
	Sessions int    `json:"sessions"`
	Bindings int    `json:"bindings"`
	// Detail carries backend-specific figures (Redis INFO fields,
	// local capacity).
	Detail map[string]string `json:"detail,omitempty"`
}

// Store is the rehydration store contract shared by both backends.
//
// Session ids must be UUIDs. Non-UUID ids yield nil/false results on
// read paths and ErrInvalidSessionID from Store.
type Store interface {
	// Store upserts the session, appends bindings whose Original is
	// not yet present (existing tokens win), and resets the TTL.
	Store(ctx context.Context, sessionID string, bindings []TokenBinding, ttl time.Duration) error

	// Retrieve returns the session or nil when missing/expired,
	// refreshing LastAccessedAt on a hit.
	Retrieve(ctx context.Context, sessionID string) (*Session, error)

	// Hydrate replaces every bound token occurrence in text with its
	// original. Unknown tokens and unknown sessions pass through
	// verbatim.
	Hydrate(ctx context.Context, text, sessionID string) (string, error)

	Delete(ctx context.Context, sessionID string) (bool, error)
	DeleteAll(ctx context.Context) (int, error)
	Extend(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
	Size(ctx context.Context) (int, error)

	// AllSessions lists summaries sorted by CreatedAt descending.
	AllSessions(ctx context.Context) ([]Summary, error)

	// Search returns summaries of sessions whose id, categories, or
	// original values contain the query.
	Search(ctx context.Context, query string) ([]Summary, error)

	StorageStats(ctx context.Context) (Stats, error)

	// SetSentinels swaps the token delimiters Hydrate scans with, so a
	// runtime change of the placeholder sentinels reaches the store.
	// Tokens minted under the previous sentinels stop hydrating.
	SetSentinels(prefix, suffix rune)
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// HydrateText replaces bound tokens in text using an already-retrieved
// session. The streaming mediator retrieves once per response and
// calls this per flushed chunk, avoiding a store round-trip per event.
func HydrateText(text string, s *Session, prefix, suffix rune) string {
	return hydrate(text, s, prefix, suffix)
}

// hydrate performs the single-pass replacement shared by both
// backends: one linear scan for sentinel-delimited token spans, a map
// lookup per candidate, and a splice. Tokens with no binding are kept
// as-is.
func hydrate(text string, s *Session, prefix, suffix rune) string {
	if s == nil || len(s.Bindings) == 0 {
		return text
	}
	matches := token.Scan(text, prefix, suffix)
	if len(matches) == 0 {
		return text
	}
	byToken := make(map[string]string, len(s.Bindings))
	for _, b := range s.Bindings {
		byToken[b.Token] = b.Original
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		original, ok := byToken[m.Token]
		if !ok {
			continue
		}
		b.WriteString(text[last:m.Start])
		b.WriteString(original)
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// mergeBindings appends the incoming bindings whose Original is new to
// the session, preserving existing tokens, and returns the session's
// summary shape.
func mergeBindings(s *Session, incoming []TokenBinding) {
	seen := make(map[string]bool, len(s.Bindings))
	for _, b := range s.Bindings {
		seen[b.Original] = true
	}
	for _, b := range incoming {
		if b.Token == "" || b.Original == "" || seen[b.Original] {
			continue
		}
		seen[b.Original] = true
		s.Bindings = append(s.Bindings, b)
	}
}

func summarize(s *Session) Summary {
	return Summary{
		ID:           s.ID,
		BindingCount: len(s.Bindings),
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

// matchesQuery reports whether a session matches a free-text search
// over its id, binding categories, and original values.
func matchesQuery(s *Session, query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s.ID), q) {
		return true
	}
	for _, b := range s.Bindings {
		if strings.Contains(strings.ToLower(b.Original), q) ||
			strings.Contains(strings.ToLower(b.Category), q) {
			return true
		}
	}
	return false
}
