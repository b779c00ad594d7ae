package tiers

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ExceptionStore provides read access to admin-managed rate limit
// exceptions. Implementations must be safe for concurrent use.
type ExceptionStore interface {
	// FindActive returns the exceptions active right now for the identity
	// and endpoint, ordered by CreatedAt ascending.
	FindActive(ctx context.Context, identityKey, endpoint string) ([]Exception, error)
}

// MemoryExceptionStore is an in-memory ExceptionStore. The admin workflow
// writes through Put and Revoke; the admission path only reads.
type MemoryExceptionStore struct {
	mu         sync.RWMutex
	exceptions map[string]Exception // by ID
	nowFn      func() time.Time
}

// NewMemoryExceptionStore creates an empty exception store.
func NewMemoryExceptionStore() *MemoryExceptionStore {
	return &MemoryExceptionStore{
		exceptions: make(map[string]Exception),
		nowFn:      time.Now,
	}
}

// Put inserts or replaces an exception.
func (s *MemoryExceptionStore) Put(e Exception) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.nowFn()
	}
	s.exceptions[e.ID] = e
}

// Revoke marks an exception revoked. No-op for unknown IDs.
func (s *MemoryExceptionStore) Revoke(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.exceptions[id]; ok {
		e.Revoked = true
		s.exceptions[id] = e
	}
}

// FindActive implements ExceptionStore.
func (s *MemoryExceptionStore) FindActive(_ context.Context, identityKey, endpoint string) ([]Exception, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.nowFn()
	var active []Exception
	for _, e := range s.exceptions {
		if e.IdentityKey != identityKey || !e.ActiveAt(now) {
			continue
		}
		if !scopeMatches(e.EndpointScope, endpoint) {
			continue
		}
		active = append(active, e)
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

// scopeMatches checks an endpoint against an exception scope. The scope is
// a wildcard pattern in the cost model's syntax; empty scope matches all.
func scopeMatches(scope, endpoint string) bool {
	if scope == "" {
		return true
	}
	return wildcardMatch(normalize(scope), normalize(endpoint))
}

func normalize(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// wildcardMatch matches pattern against s where '*' spans any run of
// characters. Iterative two-pointer form, no per-call compilation.
func wildcardMatch(pattern, s string) bool {
	pi, si := 0, 0
	star, mark := -1, 0

	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			star = pi
			mark = si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// CachedExceptionStore wraps an ExceptionStore with a short-TTL read-through
// cache. The exception store is read-heavy and a few seconds of staleness is
// acceptable, so lookups for hot identities avoid the backing store.
type CachedExceptionStore struct {
	backing ExceptionStore
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[string]cachedExceptions
	nowFn func() time.Time
}

type cachedExceptions struct {
	exceptions []Exception
	fetchedAt  time.Time
}

// NewCachedExceptionStore wraps a store with a TTL cache. A non-positive TTL
// defaults to 5 seconds.
func NewCachedExceptionStore(backing ExceptionStore, ttl time.Duration) *CachedExceptionStore {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &CachedExceptionStore{
		backing: backing,
		ttl:     ttl,
		cache:   make(map[string]cachedExceptions),
		nowFn:   time.Now,
	}
}

// FindActive implements ExceptionStore with caching per (identity, endpoint).
func (c *CachedExceptionStore) FindActive(ctx context.Context, identityKey, endpoint string) ([]Exception, error) {
	key := identityKey + "\x00" + endpoint
	now := c.nowFn()

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && now.Sub(entry.fetchedAt) < c.ttl {
		return entry.exceptions, nil
	}

	exceptions, err := c.backing.FindActive(ctx, identityKey, endpoint)
	if err != nil {
		// Serve stale on backing failure rather than dropping overrides.
		if ok {
			return entry.exceptions, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = cachedExceptions{exceptions: exceptions, fetchedAt: now}
	c.mu.Unlock()
	return exceptions, nil
}
