package window

import (
	"sync"
	"time"
)

// slidingWindow is a fixed-size circular buffer of time-stamped cost
// sub-buckets. Adding prunes expired buckets, stamps the current bucket,
// and increments it under the window lock, so concurrent writers cannot
// lose updates.
type slidingWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []costBucket
	mu         sync.Mutex
	nowFn      func() time.Time
}

type costBucket struct {
	timestamp time.Time
	cost      float64
}

func newSlidingWindow(window, bucketSize time.Duration, nowFn func() time.Time) *slidingWindow {
	numBuckets := int(window / bucketSize)
	if numBuckets == 0 {
		numBuckets = 1
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &slidingWindow{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]costBucket, numBuckets),
		nowFn:      nowFn,
	}
}

// add increments the current sub-bucket by cost.
func (sw *slidingWindow) add(cost float64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.nowFn()
	sw.pruneLocked(now)
	sw.bucketForLocked(now).cost += cost
}

// usage returns the window total and the time until the oldest contributing
// sub-bucket exits the window.
func (sw *slidingWindow) usage() (float64, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.nowFn()
	sw.pruneLocked(now)

	var (
		total  float64
		oldest time.Time
	)
	for i := range sw.buckets {
		b := &sw.buckets[i]
		if b.timestamp.IsZero() || b.cost == 0 {
			continue
		}
		total += b.cost
		if oldest.IsZero() || b.timestamp.Before(oldest) {
			oldest = b.timestamp
		}
	}

	if oldest.IsZero() {
		return total, 0
	}
	remaining := oldest.Add(sw.window).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return total, remaining
}

// pruneLocked clears buckets older than the window. Caller holds mu.
func (sw *slidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-sw.window)
	for i := range sw.buckets {
		if !sw.buckets[i].timestamp.IsZero() && sw.buckets[i].timestamp.Before(cutoff) {
			sw.buckets[i] = costBucket{}
		}
	}
}

// bucketForLocked returns the bucket for the current time, claiming an empty
// or the oldest slot when none matches. Caller holds mu.
func (sw *slidingWindow) bucketForLocked(now time.Time) *costBucket {
	bucketTime := now.Truncate(sw.bucketSize)

	emptyIdx := -1
	oldestIdx := 0
	for i := range sw.buckets {
		if sw.buckets[i].timestamp.Equal(bucketTime) {
			return &sw.buckets[i]
		}
		if sw.buckets[i].timestamp.IsZero() {
			if emptyIdx == -1 {
				emptyIdx = i
			}
			continue
		}
		if sw.buckets[i].timestamp.Before(sw.buckets[oldestIdx].timestamp) {
			oldestIdx = i
		}
	}

	idx := emptyIdx
	if idx == -1 {
		idx = oldestIdx
	}
	sw.buckets[idx] = costBucket{timestamp: bucketTime}
	return &sw.buckets[idx]
}

// state exports the live buckets for snapshot persistence.
func (sw *slidingWindow) state() []BucketState {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(sw.nowFn())

	var out []BucketState
	for i := range sw.buckets {
		if sw.buckets[i].timestamp.IsZero() || sw.buckets[i].cost == 0 {
			continue
		}
		out = append(out, BucketState{
			Timestamp: sw.buckets[i].timestamp,
			Cost:      sw.buckets[i].cost,
		})
	}
	return out
}

// restore loads previously snapshotted buckets, dropping any that have
// already aged out of the window.
func (sw *slidingWindow) restore(buckets []BucketState) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := sw.nowFn().Add(-sw.window)
	slot := 0
	for _, b := range buckets {
		if slot >= len(sw.buckets) || b.Timestamp.Before(cutoff) {
			continue
		}
		sw.buckets[slot] = costBucket{timestamp: b.Timestamp, cost: b.Cost}
		slot++
	}
}
