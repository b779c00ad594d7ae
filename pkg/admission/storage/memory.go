package storage

import (
	"context"
	"sync"
	"time"

	"clubline-hq/saturn/pkg/admission/window"
)

// MemoryBackend is an in-memory Backend for tests and environments where
// restart durability does not matter.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	nowFn   func() time.Time
}

type memoryEntry struct {
	states  []window.State
	updated time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		nowFn:   time.Now,
	}
}

// Save implements Backend.
func (m *MemoryBackend) Save(_ context.Context, key string, states []window.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{states: states, updated: m.nowFn()}
	return nil
}

// LoadAll implements Backend.
func (m *MemoryBackend) LoadAll(_ context.Context) (map[string][]window.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]window.State, len(m.entries))
	for key, e := range m.entries {
		out[key] = e.states
	}
	return out, nil
}

// Cleanup implements Backend.
func (m *MemoryBackend) Cleanup(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if e.updated.Before(olderThan) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error { return nil }
