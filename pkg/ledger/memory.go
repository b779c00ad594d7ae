package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage for tests and dev environments.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryStorage creates an empty in-memory ledger.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append implements Storage.
func (m *MemoryStorage) Append(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// List implements Storage.
func (m *MemoryStorage) List(_ context.Context, identityKey string, limit int) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for i := len(m.records) - 1; i >= 0; i-- {
		if identityKey != "" && m.records[i].IdentityKey != identityKey {
			continue
		}
		out = append(out, m.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Count implements Storage.
func (m *MemoryStorage) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Prune implements Storage.
func (m *MemoryStorage) Prune(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	pruned := 0
	for _, rec := range m.records {
		if rec.Timestamp.Before(olderThan) {
			pruned++
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
	return pruned, nil
}

// Close implements Storage.
func (m *MemoryStorage) Close() error { return nil }
