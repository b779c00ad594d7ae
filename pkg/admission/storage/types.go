package storage

import (
	"context"
	"time"

	"clubline-hq/saturn/pkg/admission/window"
)

// Backend persists per-identity window snapshots. Implementations must be
// safe for concurrent use.
type Backend interface {
	// Save upserts the window states for an identity key.
	Save(ctx context.Context, key string, states []window.State) error

	// LoadAll returns every stored snapshot, keyed by identity key.
	LoadAll(ctx context.Context) (map[string][]window.State, error)

	// Cleanup removes snapshots not updated since the cutoff. Returns the
	// number of entries removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases backend resources.
	Close() error
}
