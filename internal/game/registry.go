package game

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/okian/tapforge/pkg/logger"
	"github.com/okian/tapforge/pkg/metrics"
)

// Registry defaults.
const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 10_000

	closeTimeout = 10 * time.Second
)

// Identity names the owner of a session: an authenticated player or an
// anonymous client session.
type Identity struct {
	PlayerID  string
	SessionID string
}

// Key returns the registry key of the identity.
func (id Identity) Key() string {
	if id.PlayerID != "" {
		return "player:" + id.PlayerID
	}
	return "anon:" + id.SessionID
}

// Anonymous reports whether the identity has no player id.
func (id Identity) Anonymous() bool { return id.PlayerID == "" }

// Factory builds the session of an identity.
type Factory func(id Identity) *Session

// Registry keeps live sessions by identity. Idle sessions expire and are
// flushed on eviction.
type Registry struct {
	factory Factory
	log     logger.Logger

	mu      sync.Mutex
	cache   *expirable.LRU[string, *Session]
	closing sync.WaitGroup
}

// NewRegistry creates a registry holding at most maxSessions sessions,
// each expiring after ttl without use.
func NewRegistry(factory Factory, maxSessions int, ttl time.Duration) *Registry {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	r := &Registry{factory: factory, log: logger.Get().Named("registry")}
	r.cache = expirable.NewLRU[string, *Session](maxSessions, r.evicted, ttl)
	return r
}

// evicted runs under the cache lock, so the flush happens elsewhere.
func (r *Registry) evicted(key string, s *Session) {
	metrics.RecordSessionEvicted()
	r.closing.Add(1)
	go func() {
		defer r.closing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := s.Close(ctx); err != nil {
			r.log.Warn(ctx, "Flush on eviction failed", logger.String("session", key), logger.Error(err))
		}
	}()
}

// Get returns the hydrated session of id, creating it on first use. Each
// call renews the session's idle deadline.
func (r *Registry) Get(ctx context.Context, id Identity) (*Session, error) {
	if id.PlayerID == "" && id.SessionID == "" {
		return nil, ErrNoIdentity
	}
	key := id.Key()

	r.mu.Lock()
	s, ok := r.cache.Get(key)
	if !ok {
		s = r.factory(id)
	}
	r.cache.Add(key, s)
	n := r.cache.Len()
	r.mu.Unlock()
	metrics.UpdateActiveSessions(n)

	if err := s.Hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int { return r.cache.Len() }

// Close evicts every session and waits for their flushes.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.cache.Purge()
	r.mu.Unlock()
	metrics.UpdateActiveSessions(0)

	done := make(chan struct{})
	go func() {
		r.closing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
