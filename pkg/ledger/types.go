package ledger

import (
	"context"
	"time"
)

// Record is one persisted admission decision. Append-only.
type Record struct {
	// ID is a generated UUID.
	ID string

	// Timestamp is when the decision was made.
	Timestamp time.Time

	// IdentityKey and IdentityKind describe the rate-limited principal.
	// API keys are stored hashed; raw keys never reach the ledger.
	IdentityKey  string
	IdentityKind string

	// Endpoint is the normalized endpoint path.
	Endpoint string

	// CostWeight is the endpoint cost the decision used.
	CostWeight float64

	// Allowed is the verdict; LimitTypeHit names the limit on denial.
	Allowed      bool
	LimitTypeHit string

	// OverageCost is the billed USD amount for overage admissions.
	OverageCost float64

	// RetryAfter is the hint returned to a denied client.
	RetryAfter time.Duration

	// FailedOpen marks admissions granted by the fail-open policy.
	FailedOpen bool

	// CountryCode is GeoIP metadata when a provider is wired, else "".
	CountryCode string

	// Metadata carries per-request context from the caller (request ID,
	// method, user agent).
	Metadata map[string]string
}

// Storage persists ledger records. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Append writes one record.
	Append(ctx context.Context, rec *Record) error

	// List returns up to limit records for an identity key, newest first.
	// An empty identity key lists across all identities.
	List(ctx context.Context, identityKey string, limit int) ([]*Record, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int, error)

	// Prune deletes records older than the cutoff, returning how many.
	Prune(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases storage resources.
	Close() error
}
