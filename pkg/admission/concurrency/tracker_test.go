package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryTracker_AcquireReturnsPreIncrement(t *testing.T) {
	tracker := NewMemoryTracker()
	defer tracker.Close()
	ctx := context.Background()

	for want := int64(0); want < 3; want++ {
		before, err := tracker.Acquire(ctx, "user:42")
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if before != want {
			t.Errorf("Acquire() = %d, want %d", before, want)
		}
	}
	if got := tracker.InFlight("user:42"); got != 3 {
		t.Errorf("InFlight = %d, want 3", got)
	}
}

func TestMemoryTracker_ReleaseNeverBelowZero(t *testing.T) {
	tracker := NewMemoryTracker()
	defer tracker.Close()
	ctx := context.Background()

	tracker.Acquire(ctx, "user:42")
	tracker.Release(ctx, "user:42")
	tracker.Release(ctx, "user:42") // extra release must not go negative
	tracker.Release(ctx, "user:99") // unknown key is a no-op

	if got := tracker.InFlight("user:42"); got != 0 {
		t.Errorf("InFlight = %d, want 0", got)
	}

	before, _ := tracker.Acquire(ctx, "user:42")
	if before != 0 {
		t.Errorf("Acquire() after over-release = %d, want 0", before)
	}
}

func TestMemoryTracker_IdentitiesAreIndependent(t *testing.T) {
	tracker := NewMemoryTracker()
	defer tracker.Close()
	ctx := context.Background()

	tracker.Acquire(ctx, "user:42")
	tracker.Acquire(ctx, "user:42")

	before, _ := tracker.Acquire(ctx, "user:43")
	if before != 0 {
		t.Errorf("Acquire() for other identity = %d, want 0", before)
	}
}

func TestMemoryTracker_ConcurrentAcquireIsLossless(t *testing.T) {
	// N simultaneous acquires must hand out the pre-increment values
	// 0..N-1 exactly once each, independent of arrival order.
	tracker := NewMemoryTracker()
	defer tracker.Close()
	ctx := context.Background()

	const n = 64
	results := make(chan int64, n)

	var start, wg sync.WaitGroup
	start.Add(1)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start.Wait()
			before, err := tracker.Acquire(ctx, "user:42")
			if err != nil {
				t.Error(err)
				return
			}
			results <- before
		}()
	}
	start.Done()
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, n)
	for v := range results {
		if seen[v] {
			t.Fatalf("pre-increment value %d handed out twice (lost update)", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct values, want %d", len(seen), n)
	}
	if got := tracker.InFlight("user:42"); got != n {
		t.Errorf("InFlight = %d, want %d", got, n)
	}
}

func TestMemoryTracker_ReapDropsIdleCounters(t *testing.T) {
	tracker := NewMemoryTracker()
	defer tracker.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	tracker.nowFn = func() time.Time { return base }

	// Simulates a caller that crashed holding a slot.
	tracker.Acquire(ctx, "user:42")

	tracker.nowFn = func() time.Time { return base.Add(CounterTTL + time.Minute) }
	tracker.reap()

	if got := tracker.InFlight("user:42"); got != 0 {
		t.Errorf("InFlight after TTL reap = %d, want 0", got)
	}
}
