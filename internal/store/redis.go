package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "anonamoose:session:"

// Redis is the remote backend. Sessions are JSON values under
// anonamoose:session:<uuid> with a native TTL, so expiry needs no
// sweeping. Read-merge-write on Store runs inside WATCH so concurrent
// writers to one session cannot lose bindings.
type Redis struct {
	client *redis.Client
	log    *zap.Logger

	mu     sync.RWMutex
	prefix rune
	suffix rune
}

// NewRedis connects to the given Redis URL and pings it. A failed
// ping is returned to the caller, which downgrades to the local
// backend with a single warning.
func NewRedis(ctx context.Context, url string, prefix, suffix rune, log *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, prefix: prefix, suffix: suffix, log: log}, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Store(ctx context.Context, sessionID string, bindings []TokenBinding, ttl time.Duration) error {
	if !validSessionID(sessionID) {
		return ErrInvalidSessionID
	}
	key := sessionKeyPrefix + sessionID

	merge := func(tx *redis.Tx) error {
		now := time.Now()
		s := &Session{ID: sessionID, CreatedAt: now}
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			// new session
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(raw), s); err != nil {
				// Corrupt value: start over rather than fail the write.
				r.log.Warn("discarding unreadable session value", zap.String("key", key), zap.Error(err))
				s = &Session{ID: sessionID, CreatedAt: now}
			}
		}
		mergeBindings(s, bindings)
		s.LastAccessedAt = now
		s.ExpiresAt = now.Add(ttl)

		out, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, ttl)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, merge, key)
	if err == redis.TxFailedErr {
		// Lost the race once; the retry merges against the winner's
		// value.
		err = r.client.Watch(ctx, merge, key)
	}
	if err != nil {
		return fmt.Errorf("%w: store: %v", ErrBackend, err)
	}
	return nil
}

func (r *Redis) Retrieve(ctx context.Context, sessionID string) (*Session, error) {
	if !validSessionID(sessionID) {
		return nil, nil
	}
	key := sessionKeyPrefix + sessionID

	raw, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		if raw, err = r.client.Get(ctx, key).Result(); err != nil {
			if err == redis.Nil {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: retrieve: %v", ErrBackend, err)
		}
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("%w: decode session: %v", ErrBackend, err)
	}

	s.LastAccessedAt = time.Now()
	if out, err := json.Marshal(&s); err == nil {
		if ttl := time.Until(s.ExpiresAt); ttl > 0 {
			r.client.Set(ctx, key, out, ttl)
		}
	}
	return &s, nil
}

func (r *Redis) Hydrate(ctx context.Context, text, sessionID string) (string, error) {
	s, err := r.Retrieve(ctx, sessionID)
	if err != nil {
		return text, err
	}
	if s == nil {
		return text, nil
	}
	r.mu.RLock()
	prefix, suffix := r.prefix, r.suffix
	r.mu.RUnlock()
	return hydrate(text, s, prefix, suffix), nil
}

func (r *Redis) SetSentinels(prefix, suffix rune) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefix, r.suffix = prefix, suffix
}

func (r *Redis) Delete(ctx context.Context, sessionID string) (bool, error) {
	if !validSessionID(sessionID) {
		return false, nil
	}
	n, err := r.client.Del(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: delete: %v", ErrBackend, err)
	}
	return n > 0, nil
}

func (r *Redis) DeleteAll(ctx context.Context) (int, error) {
	deleted := 0
	err := r.scanKeys(ctx, func(keys []string) error {
		n, err := r.client.Del(ctx, keys...).Result()
		deleted += int(n)
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("%w: delete all: %v", ErrBackend, err)
	}
	return deleted, nil
}

func (r *Redis) Extend(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	if !validSessionID(sessionID) {
		return false, nil
	}
	key := sessionKeyPrefix + sessionID

	extended := false
	merge := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		var s Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return err
		}
		s.ExpiresAt = time.Now().Add(ttl)
		out, err := json.Marshal(&s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, ttl)
			return nil
		})
		extended = err == nil
		return err
	}
	err := r.client.Watch(ctx, merge, key)
	if err == redis.TxFailedErr {
		err = r.client.Watch(ctx, merge, key)
	}
	if err != nil {
		return false, fmt.Errorf("%w: extend: %v", ErrBackend, err)
	}
	return extended, nil
}

func (r *Redis) Size(ctx context.Context) (int, error) {
	n := 0
	err := r.scanKeys(ctx, func(keys []string) error {
		n += len(keys)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: size: %v", ErrBackend, err)
	}
	return n, nil
}

func (r *Redis) AllSessions(ctx context.Context) ([]Summary, error) {
	return r.collect(ctx, func(s *Session) bool { return true })
}

func (r *Redis) Search(ctx context.Context, query string) ([]Summary, error) {
	return r.collect(ctx, func(s *Session) bool { return matchesQuery(s, query) })
}

func (r *Redis) collect(ctx context.Context, keep func(*Session) bool) ([]Summary, error) {
	var out []Summary
	err := r.scanKeys(ctx, func(keys []string) error {
		vals, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for _, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var s Session
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				continue
			}
			if keep(&s) {
				out = append(out, summarize(&s))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", ErrBackend, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// scanKeys pages through all session keys with a SCAN cursor, calling
// fn once per non-empty page.
func (r *Redis) scanKeys(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *Redis) StorageStats(ctx context.Context) (Stats, error) {
	sessions, err := r.Size(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Backend: "redis", Sessions: sessions, Detail: map[string]string{}}

	summaries, err := r.AllSessions(ctx)
	if err != nil {
		return Stats{}, err
	}
	for _, s := range summaries {
		stats.Bindings += s.BindingCount
	}

	if info, err := r.client.Info(ctx, "memory").Result(); err == nil {
		for _, line := range strings.Split(info, "\n") {
			if v, ok := strings.CutPrefix(line, "used_memory_human:"); ok {
				stats.Detail["usedMemory"] = strings.TrimSpace(v)
			}
		}
	}
	return stats, nil
}
