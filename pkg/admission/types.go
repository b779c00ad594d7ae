package admission

import (
	"time"

	"clubline-hq/saturn/pkg/admission/tiers"
	"clubline-hq/saturn/pkg/admission/window"
)

// LimitType names the limit a denied request ran into.
type LimitType string

const (
	// LimitNone means no limit was hit.
	LimitNone LimitType = "none"

	// LimitHourly is the sliding hourly requests cap.
	LimitHourly LimitType = "hourly"

	// LimitBurst is the sliding per-minute burst cap.
	LimitBurst LimitType = "burst"

	// LimitConcurrent is the in-flight concurrency cap.
	LimitConcurrent LimitType = "concurrent"
)

// concurrencyRetryAfter is the fixed retry hint for concurrency denials;
// in-flight requests drain quickly so no window arithmetic applies.
const concurrencyRetryAfter = 5 * time.Second

// FailurePolicy picks the behavior when the counter store is unreachable.
type FailurePolicy string

const (
	// FailOpen admits requests on infrastructure failure. The default:
	// platform availability is weighted above strict enforcement. Every
	// fail-open admission logs a warning.
	FailOpen FailurePolicy = "open"

	// FailClosed denies requests on infrastructure failure.
	FailClosed FailurePolicy = "closed"
)

// UsageSnapshot is the counter state a decision was made against.
type UsageSnapshot struct {
	// Hourly and Minutely are the window readings taken before the checks.
	Hourly   window.Usage
	Minutely window.Usage

	// InFlight is the concurrency count inclusive of this request.
	InFlight int64
}

// Result is the verdict for one request. It is ephemeral: the recorder
// turns it into a durable UsageRecord, and the transport layer turns it
// into response headers.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// LimitTypeHit names the limit that denied the request; LimitNone for
	// allowed requests, including overage-billed ones.
	LimitTypeHit LimitType

	// RetryAfter hints when the client should retry a denied request.
	RetryAfter time.Duration

	// OverageCost is the billed amount in USD when the hourly cap was
	// exceeded and the subscription permits overage. Zero otherwise.
	OverageCost float64

	// CostWeight is the endpoint's cost weight used in the comparisons.
	CostWeight float64

	// Limits is the effective tier the request was judged against.
	Limits tiers.Tier

	// Usage is the counter snapshot the checks ran on.
	Usage UsageSnapshot

	// FailedOpen marks an admission granted by the fail-open policy
	// rather than by the checks.
	FailedOpen bool

	// slotClaimed records whether the decision acquired a concurrency
	// slot. Release skips decrements the tracker never saw.
	slotClaimed bool
}

// Overage reports whether the request is billed as overage.
func (r *Result) Overage() bool {
	return r.OverageCost > 0
}

// RemainingHourly returns the hourly quota left after this request, for
// response metadata. Unlimited tiers report -1.
func (r *Result) RemainingHourly() float64 {
	if r.Limits.Unlimited {
		return -1
	}
	remaining := r.Limits.RequestsPerHour - r.Usage.Hourly.TotalCost - r.CostWeight
	if remaining < 0 {
		return 0
	}
	return remaining
}
