package concurrency

import (
	"context"
	"sync"
	"time"
)

// CounterTTL bounds how long an idle counter survives without activity.
// It is the safety net for callers that never release (e.g. process crash).
const CounterTTL = 5 * time.Minute

// Tracker maintains in-flight request counts partitioned by identity key.
type Tracker interface {
	// Acquire atomically increments the counter and returns its
	// pre-increment value.
	Acquire(ctx context.Context, key string) (int64, error)

	// Release decrements the counter, never below zero. Must be called
	// exactly once per successful Acquire.
	Release(ctx context.Context, key string) error
}

// MemoryTracker is an in-process Tracker. A background reaper drops
// counters idle for longer than the TTL.
type MemoryTracker struct {
	mu       sync.Mutex
	counters map[string]*counter
	ttl      time.Duration
	nowFn    func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

type counter struct {
	inFlight int64
	touched  time.Time
}

// NewMemoryTracker creates a tracker with the default TTL and starts its
// reaper. Call Close to stop the reaper.
func NewMemoryTracker() *MemoryTracker {
	t := &MemoryTracker{
		counters: make(map[string]*counter),
		ttl:      CounterTTL,
		nowFn:    time.Now,
		done:     make(chan struct{}),
	}
	go t.reapLoop()
	return t
}

// Acquire implements Tracker.
func (t *MemoryTracker) Acquire(_ context.Context, key string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.counters[key]
	if c == nil {
		c = &counter{}
		t.counters[key] = c
	}
	before := c.inFlight
	c.inFlight++
	c.touched = t.nowFn()
	return before, nil
}

// Release implements Tracker.
func (t *MemoryTracker) Release(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.counters[key]
	if c == nil {
		return nil
	}
	if c.inFlight > 0 {
		c.inFlight--
	}
	c.touched = t.nowFn()
	return nil
}

// InFlight returns the current counter value. Used by tests and metrics.
func (t *MemoryTracker) InFlight(key string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c := t.counters[key]; c != nil {
		return c.inFlight
	}
	return 0
}

// Close stops the reaper goroutine.
func (t *MemoryTracker) Close() error {
	t.stopOnce.Do(func() { close(t.done) })
	return nil
}

func (t *MemoryTracker) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.reap()
		case <-t.done:
			return
		}
	}
}

// reap drops counters that have been idle past the TTL. A counter stuck
// above zero by a crashed caller is reclaimed here.
func (t *MemoryTracker) reap() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.nowFn().Add(-t.ttl)
	for key, c := range t.counters {
		if c.touched.Before(cutoff) {
			delete(t.counters, key)
		}
	}
}
