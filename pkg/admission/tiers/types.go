package tiers

import "time"

// Tier describes the limits attached to a subscription tier.
//
// Unlimited tiers bypass the hourly and burst caps entirely; the flag is the
// only representation of "no limit" so that no sentinel value ever enters a
// comparison. A finite ConcurrentRequests cap still applies to an unlimited
// tier when set; zero means uncapped concurrency.
type Tier struct {
	// Name is the tier identifier (e.g. "free", "pro").
	Name string

	// RequestsPerHour caps cost-weighted usage over the sliding hourly
	// window. Ignored when Unlimited is set.
	RequestsPerHour float64

	// BurstPerMinute caps cost-weighted usage over the sliding minutely
	// window. Ignored when Unlimited is set.
	BurstPerMinute float64

	// ConcurrentRequests caps simultaneous in-flight requests. Zero means
	// no concurrency cap.
	ConcurrentRequests int64

	// CostMultiplier is billing display metadata; it does not scale the
	// cap comparisons.
	CostMultiplier float64

	// Priority orders tiers for display and queueing, higher is better.
	Priority int

	// Unlimited bypasses the hourly and burst checks.
	Unlimited bool
}

// Exception is an admin-managed temporary override of one or more tier
// fields for a single identity.
//
// Exceptions are created and expired by an external admin workflow; this
// package only reads them. An exception is active when the current time is
// within [ValidFrom, ValidUntil) and it has not been revoked. Multiple
// active exceptions stack in CreatedAt order.
type Exception struct {
	// ID identifies the exception in the admin workflow.
	ID string

	// IdentityKey is the counter partition key the exception applies to.
	IdentityKey string

	// EndpointScope restricts the exception to endpoints matching this
	// wildcard pattern. Empty means all endpoints.
	EndpointScope string

	// Partial overrides; nil fields pass the current value through.
	RequestsPerHour    *float64
	BurstPerMinute     *float64
	ConcurrentRequests *int64

	ValidFrom  time.Time
	ValidUntil time.Time
	Revoked    bool
	CreatedAt  time.Time
}

// ActiveAt reports whether the exception applies at the given instant.
func (e Exception) ActiveAt(now time.Time) bool {
	if e.Revoked {
		return false
	}
	return !now.Before(e.ValidFrom) && now.Before(e.ValidUntil)
}
