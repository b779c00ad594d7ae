package window

import (
	"context"
	"time"
)

// Kind selects one of the two windows tracked per identity.
type Kind string

const (
	// KindHourly is the 3600s window backing the requests-per-hour cap.
	KindHourly Kind = "hourly"

	// KindMinutely is the 60s window backing the burst-per-minute cap.
	KindMinutely Kind = "minutely"
)

// Duration returns the window length.
func (k Kind) Duration() time.Duration {
	if k == KindMinutely {
		return time.Minute
	}
	return time.Hour
}

// BucketSize returns the sub-bucket granularity for the window.
func (k Kind) BucketSize() time.Duration {
	if k == KindMinutely {
		return time.Second
	}
	return time.Minute
}

// Usage is a point-in-time view of one window for one identity.
type Usage struct {
	// TotalCost is the cost-weighted usage inside the trailing window.
	TotalCost float64

	// TimeRemaining is the time until the oldest contributing sub-bucket
	// exits the window; zero when the window is empty. Used as the retry
	// hint for denied requests.
	TimeRemaining time.Duration
}

// Store maintains sliding-window cost totals partitioned by identity key.
// Implementations must apply Record as an atomic increment: simultaneous
// writers for the same key must never lose updates.
type Store interface {
	// Record adds cost to the current sub-bucket of the given window.
	Record(ctx context.Context, key string, kind Kind, cost float64) error

	// Current returns the window's cost total and retry hint.
	Current(ctx context.Context, key string, kind Kind) (Usage, error)
}
