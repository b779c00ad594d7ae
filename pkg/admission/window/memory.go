package window

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Each (identity, kind) pair owns an
// independent sliding window; windows for different identities never share
// locks.
//
// MemoryStore suits single-instance deployments. Multi-instance deployments
// share counters through RedisStore instead; the choice is made at wiring
// time, not here.
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]*slidingWindow
	nowFn   func() time.Time
}

// BucketState is one persisted sub-bucket of a window snapshot.
type BucketState struct {
	Timestamp time.Time `json:"ts"`
	Cost      float64   `json:"cost"`
}

// State is a snapshot of one identity's window, exported for persistence
// across restarts.
type State struct {
	Kind    Kind          `json:"kind"`
	Buckets []BucketState `json:"buckets"`
}

// NewMemoryStore creates an empty in-process window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*slidingWindow),
		nowFn:   time.Now,
	}
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, key string, kind Kind, cost float64) error {
	m.windowFor(key, kind).add(cost)
	return nil
}

// Current implements Store.
func (m *MemoryStore) Current(_ context.Context, key string, kind Kind) (Usage, error) {
	total, remaining := m.windowFor(key, kind).usage()
	return Usage{TotalCost: total, TimeRemaining: remaining}, nil
}

// Snapshot exports the live window state of every identity, keyed by
// identity key. Empty windows are omitted.
func (m *MemoryStore) Snapshot() map[string][]State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]State)
	for composite, sw := range m.windows {
		key, kind, ok := splitKey(composite)
		if !ok {
			continue
		}
		buckets := sw.state()
		if len(buckets) == 0 {
			continue
		}
		out[key] = append(out[key], State{Kind: kind, Buckets: buckets})
	}
	return out
}

// Restore loads a snapshot produced by Snapshot. Buckets that have already
// aged out of their window are dropped.
func (m *MemoryStore) Restore(snapshot map[string][]State) {
	for key, states := range snapshot {
		for _, st := range states {
			m.windowFor(key, st.Kind).restore(st.Buckets)
		}
	}
}

func (m *MemoryStore) windowFor(key string, kind Kind) *slidingWindow {
	composite := key + "\x00" + string(kind)

	m.mu.RLock()
	sw, ok := m.windows[composite]
	m.mu.RUnlock()
	if ok {
		return sw
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sw, ok = m.windows[composite]; ok {
		return sw
	}
	sw = newSlidingWindow(kind.Duration(), kind.BucketSize(), m.nowFn)
	m.windows[composite] = sw
	return sw
}

func splitKey(composite string) (string, Kind, bool) {
	for i := len(composite) - 1; i >= 0; i-- {
		if composite[i] == '\x00' {
			return composite[:i], Kind(composite[i+1:]), true
		}
	}
	return "", "", false
}
