package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// DefaultMaxSessions caps the local backend; reaching it evicts the
// oldest 10% of sessions by CreatedAt.
const DefaultMaxSessions = 10000

// Local is the in-process backend: a map guarded by one RWMutex,
// lazily expiring on read with a periodic sweep driven by the worker.
type Local struct {
	prefix rune
	suffix rune
	max    int
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewLocal returns a Local store delimiting tokens with the given
// sentinels. maxSessions <= 0 selects the default capacity.
func NewLocal(prefix, suffix rune, maxSessions int) *Local {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Local{
		prefix:   prefix,
		suffix:   suffix,
		max:      maxSessions,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (l *Local) Store(_ context.Context, sessionID string, bindings []TokenBinding, ttl time.Duration) error {
	if !validSessionID(sessionID) {
		return ErrInvalidSessionID
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[sessionID]
	if ok && s.Expired(now) {
		delete(l.sessions, sessionID)
		ok = false
	}
	if !ok {
		if len(l.sessions) >= l.max {
			l.evictOldest()
		}
		s = &Session{ID: sessionID, CreatedAt: now}
		l.sessions[sessionID] = s
	}
	mergeBindings(s, bindings)
	s.LastAccessedAt = now
	s.ExpiresAt = now.Add(ttl)
	return nil
}

func (l *Local) Retrieve(_ context.Context, sessionID string) (*Session, error) {
	if !validSessionID(sessionID) {
		return nil, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if s.Expired(now) {
		delete(l.sessions, sessionID)
		return nil, nil
	}
	s.LastAccessedAt = now

	cp := *s
	cp.Bindings = append([]TokenBinding(nil), s.Bindings...)
	return &cp, nil
}

func (l *Local) Hydrate(ctx context.Context, text, sessionID string) (string, error) {
	s, err := l.Retrieve(ctx, sessionID)
	if err != nil || s == nil {
		return text, err
	}
	l.mu.RLock()
	prefix, suffix := l.prefix, l.suffix
	l.mu.RUnlock()
	return hydrate(text, s, prefix, suffix), nil
}

func (l *Local) SetSentinels(prefix, suffix rune) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix, l.suffix = prefix, suffix
}

func (l *Local) Delete(_ context.Context, sessionID string) (bool, error) {
	if !validSessionID(sessionID) {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(l.sessions, sessionID)
	return true, nil
}

func (l *Local) DeleteAll(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.sessions)
	l.sessions = make(map[string]*Session)
	return n, nil
}

func (l *Local) Extend(_ context.Context, sessionID string, ttl time.Duration) (bool, error) {
	if !validSessionID(sessionID) {
		return false, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[sessionID]
	if !ok || s.Expired(now) {
		return false, nil
	}
	s.ExpiresAt = now.Add(ttl)
	return true, nil
}

func (l *Local) Size(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sessions), nil
}

func (l *Local) AllSessions(_ context.Context) ([]Summary, error) {
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Summary, 0, len(l.sessions))
	for _, s := range l.sessions {
		if s.Expired(now) {
			continue
		}
		out = append(out, summarize(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *Local) Search(_ context.Context, query string) ([]Summary, error) {
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Summary
	for _, s := range l.sessions {
		if s.Expired(now) || !matchesQuery(s, query) {
			continue
		}
		out = append(out, summarize(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *Local) StorageStats(_ context.Context) (Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bindings := 0
	for _, s := range l.sessions {
		bindings += len(s.Bindings)
	}
	return Stats{
		Backend:  "local",
		Sessions: len(l.sessions),
		Bindings: bindings,
		Detail:   map[string]string{"capacity": strconv.Itoa(l.max)},
	}, nil
}

// Sweep removes expired sessions and returns how many were purged.
// The cron worker calls this periodically; reads also expire lazily,
// so the sweep only bounds memory, not correctness.
func (l *Local) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, s := range l.sessions {
		if s.Expired(now) {
			delete(l.sessions, id)
			n++
		}
	}
	return n
}

// evictOldest removes the oldest 10% of sessions by CreatedAt. Caller
// holds the write lock.
func (l *Local) evictOldest() {
	n := l.max / 10
	if n < 1 {
		n = 1
	}
	type aged struct {
		id string
		at time.Time
	}
	all := make([]aged, 0, len(l.sessions))
	for id, s := range l.sessions {
		all = append(all, aged{id: id, at: s.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(l.sessions, a.id)
	}
}
