package admission

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"clubline-hq/saturn/pkg/admission/concurrency"
	"clubline-hq/saturn/pkg/admission/costmodel"
	"clubline-hq/saturn/pkg/admission/tiers"
	"clubline-hq/saturn/pkg/admission/window"
	"clubline-hq/saturn/pkg/billing"
	"clubline-hq/saturn/pkg/identity"
)

// Config wires a Controller.
type Config struct {
	// CostRules is the ordered endpoint cost table.
	CostRules []costmodel.Rule

	// Tiers is the tier catalog; empty means the built-in tiers.
	Tiers []tiers.Tier

	// FailurePolicy controls behavior on counter store failure.
	// Defaults to FailOpen.
	FailurePolicy FailurePolicy

	Windows       window.Store
	Concurrency   concurrency.Tracker
	Subscriptions billing.Subscriptions
	Exceptions    tiers.ExceptionStore
	Logger        *slog.Logger
	Metrics       *Metrics
}

// ruleTables bundles the two hot-reloadable tables so a reload swaps both
// atomically in one pointer store.
type ruleTables struct {
	costs   *costmodel.Model
	catalog *tiers.Catalog
}

// Controller composes the cost model, tier resolution, window store, and
// concurrency tracker into one admission decision.
//
// The rule tables are behind an atomic pointer: SwapRules replaces them
// without touching window or concurrency state, which is what lets
// configuration hot-reload leave in-flight counters intact.
type Controller struct {
	rules atomic.Pointer[ruleTables]

	resolver      *tiers.Resolver
	windows       window.Store
	tracker       concurrency.Tracker
	subscriptions billing.Subscriptions
	policy        FailurePolicy
	logger        *slog.Logger
	metrics       *Metrics
}

// NewController creates a Controller from the config.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "admission")

	policy := cfg.FailurePolicy
	if policy == "" {
		policy = FailOpen
	}

	c := &Controller{
		resolver:      tiers.NewResolver(cfg.Subscriptions, cfg.Exceptions, logger),
		windows:       cfg.Windows,
		tracker:       cfg.Concurrency,
		subscriptions: cfg.Subscriptions,
		policy:        policy,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
	c.rules.Store(&ruleTables{
		costs:   costmodel.New(cfg.CostRules, logger),
		catalog: tiers.NewCatalog(cfg.Tiers),
	})
	return c
}

// SwapRules atomically replaces the cost and tier tables. Window and
// concurrency state is untouched.
func (c *Controller) SwapRules(rules []costmodel.Rule, defs []tiers.Tier) {
	c.rules.Store(&ruleTables{
		costs:   costmodel.New(rules, c.logger),
		catalog: tiers.NewCatalog(defs),
	})
	c.logger.Info("admission rule tables swapped",
		"cost_rules", len(rules),
		"tiers", len(defs),
	)
}

// Decide evaluates one request and returns the verdict.
//
// Denials are ordinary results. Infrastructure faults are resolved by the
// failure policy and never returned; a fail-open admission is flagged on
// the result and logged at warning level.
//
// Decide claims a concurrency slot for the evaluated request unless the
// counter store fails before the claim is made. The caller must pass the
// result to Release exactly once afterwards regardless of outcome; Release
// consults the result to know whether a slot was actually claimed.
func (c *Controller) Decide(ctx context.Context, id identity.Identity, endpoint string) *Result {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveDecisionDuration(time.Since(start).Seconds())
		}
	}()

	tables := c.rules.Load()
	cost := tables.costs.WeightFor(endpoint)
	limits := c.resolver.EffectiveLimits(ctx, tables.catalog, id, endpoint)

	res := &Result{
		Allowed:      true,
		LimitTypeHit: LimitNone,
		CostWeight:   cost,
		Limits:       limits,
	}

	hourly, err := c.windows.Current(ctx, id.Key(), window.KindHourly)
	if err != nil {
		return c.resolveFailure(ctx, id, endpoint, res, err)
	}
	minutely, err := c.windows.Current(ctx, id.Key(), window.KindMinutely)
	if err != nil {
		return c.resolveFailure(ctx, id, endpoint, res, err)
	}
	before, err := c.tracker.Acquire(ctx, id.Key())
	if err != nil {
		return c.resolveFailure(ctx, id, endpoint, res, err)
	}
	res.slotClaimed = true

	res.Usage = UsageSnapshot{
		Hourly:   hourly,
		Minutely: minutely,
		InFlight: before + 1,
	}

	if !limits.Unlimited {
		// Hourly check. Equality at the cap passes; only strictly
		// exceeding it denies or bills.
		if hourly.TotalCost+cost > limits.RequestsPerHour {
			if c.subscriptions.OverageAllowed(ctx, id) {
				excess := hourly.TotalCost + cost - limits.RequestsPerHour
				res.OverageCost = c.subscriptions.CalculateOverageCost(ctx, excess)
				// Overage does not exempt the burst and concurrency
				// checks below.
			} else {
				res.Allowed = false
				res.LimitTypeHit = LimitHourly
				res.RetryAfter = hourly.TimeRemaining
				c.finish(res, id)
				return res
			}
		}

		// Burst check.
		if minutely.TotalCost+cost > limits.BurstPerMinute {
			res.Allowed = false
			res.LimitTypeHit = LimitBurst
			res.RetryAfter = minutely.TimeRemaining
			res.OverageCost = 0 // denied requests are never billed
			c.finish(res, id)
			return res
		}
	}

	// Concurrency check. A finite cap applies to unlimited tiers too;
	// zero means uncapped.
	if limits.ConcurrentRequests > 0 && before >= limits.ConcurrentRequests {
		res.Allowed = false
		res.LimitTypeHit = LimitConcurrent
		res.RetryAfter = concurrencyRetryAfter
		res.OverageCost = 0
		c.finish(res, id)
		return res
	}

	c.finish(res, id)
	return res
}

// Release returns the concurrency slot claimed by Decide. Decisions that
// failed before claiming a slot are a no-op, so a failing window store
// paired with a healthy tracker cannot decrement a slot another request
// owns. Errors are logged, not returned: the TTL safety net bounds any
// resulting drift.
func (c *Controller) Release(ctx context.Context, id identity.Identity, res *Result) {
	if res != nil && !res.slotClaimed {
		return
	}
	if err := c.tracker.Release(ctx, id.Key()); err != nil {
		c.logger.Warn("concurrency release failed",
			"identity", id.Key(),
			"error", err,
		)
	}
}

// resolveFailure converts an infrastructure fault into the policy outcome.
func (c *Controller) resolveFailure(ctx context.Context, id identity.Identity, endpoint string, res *Result, err error) *Result {
	if c.metrics != nil {
		c.metrics.RecordFailurePolicy(c.policy)
	}

	if c.policy == FailClosed {
		c.logger.Warn("counter store unreachable, failing closed",
			"identity", id.Key(),
			"endpoint", endpoint,
			"error", err,
		)
		res.Allowed = false
		res.LimitTypeHit = LimitNone
		res.RetryAfter = concurrencyRetryAfter
		c.finish(res, id)
		return res
	}

	// Mandatory warning: fail-open admissions must be visible.
	c.logger.Warn("counter store unreachable, failing open",
		"identity", id.Key(),
		"endpoint", endpoint,
		"error", err,
	)
	res.Allowed = true
	res.FailedOpen = true
	c.finish(res, id)
	return res
}

func (c *Controller) finish(res *Result, id identity.Identity) {
	if c.metrics != nil {
		c.metrics.RecordDecision(res, string(id.Kind))
	}
}
