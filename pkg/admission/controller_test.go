package admission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"clubline-hq/saturn/pkg/admission/concurrency"
	"clubline-hq/saturn/pkg/admission/costmodel"
	"clubline-hq/saturn/pkg/admission/tiers"
	"clubline-hq/saturn/pkg/admission/window"
	"clubline-hq/saturn/pkg/billing"
	"clubline-hq/saturn/pkg/identity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	controller *Controller
	windows    *window.MemoryStore
	tracker    *concurrency.MemoryTracker
	subs       *billing.StaticSubscriptions
	exceptions *tiers.MemoryExceptionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	windows := window.NewMemoryStore()
	tracker := concurrency.NewMemoryTracker()
	t.Cleanup(func() { tracker.Close() })
	subs := billing.NewStaticSubscriptions(billing.StaticConfig{
		DefaultTier:       "free",
		OveragePerUnitUSD: 0.004,
	})
	exceptions := tiers.NewMemoryExceptionStore()

	controller := NewController(Config{
		CostRules: []costmodel.Rule{
			{Pattern: "api/v1/analytics/*", Weight: 5.0},
		},
		Windows:       windows,
		Concurrency:   tracker,
		Subscriptions: subs,
		Exceptions:    exceptions,
		Logger:        discardLogger(),
	})

	return &fixture{
		controller: controller,
		windows:    windows,
		tracker:    tracker,
		subs:       subs,
		exceptions: exceptions,
	}
}

func user(v string) identity.Identity {
	return identity.Identity{Kind: identity.KindUser, Value: v}
}

func TestDecide_FreshIdentityAllowed(t *testing.T) {
	// Free tier, zero prior usage, weight-1.0 endpoint.
	fx := newFixture(t)
	ctx := context.Background()
	id := user("42")

	res := fx.controller.Decide(ctx, id, "api/v1/teams")
	defer fx.controller.Release(ctx, id, res)

	if !res.Allowed {
		t.Fatal("fresh identity should be allowed")
	}
	if res.LimitTypeHit != LimitNone {
		t.Errorf("LimitTypeHit = %s, want none", res.LimitTypeHit)
	}
	if res.OverageCost != 0 {
		t.Errorf("OverageCost = %v, want 0", res.OverageCost)
	}
	if res.CostWeight != 1.0 {
		t.Errorf("CostWeight = %v, want 1.0", res.CostWeight)
	}
	if res.Usage.InFlight != 1 {
		t.Errorf("InFlight = %d, want 1 (inclusive of this request)", res.Usage.InFlight)
	}
}

func TestDecide_HourlyDenialWithoutOverage(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := user("42")

	// Hourly usage already at the free cap.
	fx.windows.Record(ctx, id.Key(), window.KindHourly, 1000.0)

	res := fx.controller.Decide(ctx, id, "api/v1/teams")
	defer fx.controller.Release(ctx, id, res)

	if res.Allowed {
		t.Fatal("request past the hourly cap without overage must be denied")
	}
	if res.LimitTypeHit != LimitHourly {
		t.Errorf("LimitTypeHit = %s, want hourly", res.LimitTypeHit)
	}
	if res.RetryAfter != res.Usage.Hourly.TimeRemaining || res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want the hourly window's time remaining (%v)",
			res.RetryAfter, res.Usage.Hourly.TimeRemaining)
	}
}

func TestDecide_OverageBillsAndAllows(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := user("42")
	fx.subs.Assign(id, "free", true)

	fx.windows.Record(ctx, id.Key(), window.KindHourly, 1000.0)

	// Weight-5.0 analytics endpoint entirely past the cap.
	res := fx.controller.Decide(ctx, id, "api/v1/analytics/attendance")
	defer fx.controller.Release(ctx, id, res)

	if !res.Allowed {
		t.Fatal("overage-entitled request must be allowed")
	}
	if res.LimitTypeHit != LimitNone {
		t.Errorf("LimitTypeHit = %s, want none for overage", res.LimitTypeHit)
	}
	want := 5.0 * 0.004
	if res.OverageCost != want {
		t.Errorf("OverageCost = %v, want %v", res.OverageCost, want)
	}
	if !res.Overage() {
		t.Error("Overage() = false, want true")
	}
}

func TestDecide_OverageDoesNotExemptBurst(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := user("42")
	fx.subs.Assign(id, "free", true)

	// Past the hourly cap (overage would bill) and past the burst cap.
	fx.windows.Record(ctx, id.Key(), window.KindHourly, 1000.0)
	fx.windows.Record(ctx, id.Key(), window.KindMinutely, 100.0)

	res := fx.controller.Decide(ctx, id, "api/v1/teams")
	defer fx.controller.Release(ctx, id, res)

	if res.Allowed {
		t.Fatal("burst cap must still deny an overage-entitled request")
	}
	if res.LimitTypeHit != LimitBurst {
		t.Errorf("LimitTypeHit = %s, want burst", res.LimitTypeHit)
	}
	if res.OverageCost != 0 {
		t.Errorf("OverageCost = %v, want 0 on a denied request", res.OverageCost)
	}
}

func TestDecide_BoundaryLaw(t *testing.T) {
	// usage + cost == limit passes; one epsilon above denies.
	fx := newFixture(t)
	ctx := context.Background()

	t.Run("exactly at the cap passes", func(t *testing.T) {
		id := user("at-cap")
		fx.windows.Record(ctx, id.Key(), window.KindHourly, 999.0)

		res := fx.controller.Decide(ctx, id, "api/v1/teams")
		defer fx.controller.Release(ctx, id, res)
		if !res.Allowed {
			t.Error("usage+cost == limit must pass")
		}
	})

	t.Run("epsilon above the cap denies", func(t *testing.T) {
		id := user("past-cap")
		fx.windows.Record(ctx, id.Key(), window.KindHourly, 999.5)

		res := fx.controller.Decide(ctx, id, "api/v1/teams")
		defer fx.controller.Release(ctx, id, res)
		if res.Allowed {
			t.Error("usage+cost > limit must deny")
		}
		if res.LimitTypeHit != LimitHourly {
			t.Errorf("LimitTypeHit = %s, want hourly", res.LimitTypeHit)
		}
	})
}

func TestDecide_BurstDenial(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := user("42")

	// One high-cost call can alone break the burst cap: 96 + 5.0 > 100.
	fx.windows.Record(ctx, id.Key(), window.KindMinutely, 96.0)

	res := fx.controller.Decide(ctx, id, "api/v1/analytics/attendance")
	defer fx.controller.Release(ctx, id, res)

	if res.Allowed {
		t.Fatal("cost-weighted burst total must deny")
	}
	if res.LimitTypeHit != LimitBurst {
		t.Errorf("LimitTypeHit = %s, want burst", res.LimitTypeHit)
	}
	if res.RetryAfter != res.Usage.Minutely.TimeRemaining {
		t.Errorf("RetryAfter = %v, want minutely time remaining", res.RetryAfter)
	}
}

func TestDecide_ConcurrencyCap(t *testing.T) {
	// 15 simultaneous requests against a cap of 10: exactly 10 admitted,
	// 5 denied as concurrent, regardless of arrival order.
	fx := newFixture(t)
	ctx := context.Background()
	id := user("42")

	const requests = 15
	results := make(chan *Result, requests)

	var start, wg sync.WaitGroup
	start.Add(1)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start.Wait()
			results <- fx.controller.Decide(ctx, id, "api/v1/teams")
		}()
	}
	start.Done()
	wg.Wait()
	close(results)

	allowed, denied := 0, 0
	for res := range results {
		if res.Allowed {
			allowed++
			continue
		}
		denied++
		if res.LimitTypeHit != LimitConcurrent {
			t.Errorf("denial LimitTypeHit = %s, want concurrent", res.LimitTypeHit)
		}
		if res.RetryAfter != concurrencyRetryAfter {
			t.Errorf("RetryAfter = %v, want fixed %v", res.RetryAfter, concurrencyRetryAfter)
		}
	}
	if allowed != 10 || denied != 5 {
		t.Errorf("allowed=%d denied=%d, want 10/5", allowed, denied)
	}
}

func TestDecide_ReleaseFreesSlots(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := user("42")

	// Fill the cap.
	held := make([]*Result, 0, 10)
	for i := 0; i < 10; i++ {
		held = append(held, fx.controller.Decide(ctx, id, "api/v1/teams"))
	}
	res := fx.controller.Decide(ctx, id, "api/v1/teams")
	fx.controller.Release(ctx, id, res)
	if res.Allowed {
		t.Fatal("11th in-flight request should be denied")
	}

	// Releasing the original ten frees capacity again.
	for _, h := range held {
		fx.controller.Release(ctx, id, h)
	}
	res = fx.controller.Decide(ctx, id, "api/v1/teams")
	defer fx.controller.Release(ctx, id, res)
	if !res.Allowed {
		t.Error("request after releases should be allowed")
	}
}

func TestDecide_UnlimitedTierNeverDeniesOnWindows(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := user("founder")
	fx.subs.Assign(id, "unlimited", false)

	// Absurd usage in both windows.
	fx.windows.Record(ctx, id.Key(), window.KindHourly, 1e9)
	fx.windows.Record(ctx, id.Key(), window.KindMinutely, 1e9)

	res := fx.controller.Decide(ctx, id, "api/v1/analytics/attendance")
	defer fx.controller.Release(ctx, id, res)

	if !res.Allowed {
		t.Fatalf("unlimited tier must not deny on hourly or burst, got %s", res.LimitTypeHit)
	}
	if res.OverageCost != 0 {
		t.Errorf("unlimited tier must not bill overage, got %v", res.OverageCost)
	}
}

func TestDecide_UnlimitedTierStillHasConcurrencyCap(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := user("founder")
	fx.subs.Assign(id, "unlimited", false)

	// The built-in unlimited tier caps concurrency at 250.
	held := make([]*Result, 0, 250)
	for i := 0; i < 250; i++ {
		held = append(held, fx.controller.Decide(ctx, id, "api/v1/teams"))
	}

	res := fx.controller.Decide(ctx, id, "api/v1/teams")
	defer func() {
		fx.controller.Release(ctx, id, res)
		for _, h := range held {
			fx.controller.Release(ctx, id, h)
		}
	}()

	if res.Allowed {
		t.Fatal("finite concurrency cap applies to the unlimited tier")
	}
	if res.LimitTypeHit != LimitConcurrent {
		t.Errorf("LimitTypeHit = %s, want concurrent", res.LimitTypeHit)
	}
}

func TestDecide_ExceptionRaisesCap(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := user("42")

	fx.windows.Record(ctx, id.Key(), window.KindHourly, 1500.0)

	// Over the free cap without the exception.
	res := fx.controller.Decide(ctx, id, "api/v1/teams")
	fx.controller.Release(ctx, id, res)
	if res.Allowed {
		t.Fatal("request should be denied before the exception exists")
	}

	hourly := 2000.0
	fx.exceptions.Put(tiers.Exception{
		ID:              "support-bump",
		IdentityKey:     id.Key(),
		RequestsPerHour: &hourly,
		ValidFrom:       time.Now().Add(-time.Minute),
		ValidUntil:      time.Now().Add(time.Hour),
	})

	res = fx.controller.Decide(ctx, id, "api/v1/teams")
	defer fx.controller.Release(ctx, id, res)
	if !res.Allowed {
		t.Error("active exception should raise the hourly cap")
	}
	if res.Limits.RequestsPerHour != 2000 {
		t.Errorf("effective hourly cap = %v, want 2000", res.Limits.RequestsPerHour)
	}
}

func TestDecide_AnonymousGetsFreeTier(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	ip := identity.Identity{Kind: identity.KindIP, Value: "203.0.113.9"}

	res := fx.controller.Decide(ctx, ip, "api/v1/teams")
	defer fx.controller.Release(ctx, ip, res)

	if res.Limits.Name != "free" {
		t.Errorf("anonymous tier = %q, want free", res.Limits.Name)
	}
}

func TestSwapRules_PreservesCounterState(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := user("42")

	fx.windows.Record(ctx, id.Key(), window.KindHourly, 800.0)

	// Reload with a new cost table and a tighter tier catalog.
	fx.controller.SwapRules(
		[]costmodel.Rule{{Pattern: "api/v1/exports/*", Weight: 10.0}},
		[]tiers.Tier{{
			Name:               "free",
			RequestsPerHour:    500,
			BurstPerMinute:     50,
			ConcurrentRequests: 5,
			CostMultiplier:     1.0,
		}},
	)

	res := fx.controller.Decide(ctx, id, "api/v1/teams")
	defer fx.controller.Release(ctx, id, res)

	// The 800 units of pre-reload usage still count against the new cap.
	if res.Allowed {
		t.Error("existing window state must survive a rule swap")
	}
	if res.Usage.Hourly.TotalCost != 800.0 {
		t.Errorf("hourly usage after swap = %v, want 800", res.Usage.Hourly.TotalCost)
	}
}

// ============================================================================
// Failure policy
// ============================================================================

type failingWindowStore struct{}

func (failingWindowStore) Record(context.Context, string, window.Kind, float64) error {
	return errors.New("counter store unreachable")
}

func (failingWindowStore) Current(context.Context, string, window.Kind) (window.Usage, error) {
	return window.Usage{}, errors.New("counter store unreachable")
}

func newFailingFixture(t *testing.T, policy FailurePolicy) *Controller {
	t.Helper()
	tracker := concurrency.NewMemoryTracker()
	t.Cleanup(func() { tracker.Close() })

	return NewController(Config{
		FailurePolicy: policy,
		Windows:       failingWindowStore{},
		Concurrency:   tracker,
		Subscriptions: billing.NewStaticSubscriptions(billing.StaticConfig{DefaultTier: "free"}),
		Logger:        discardLogger(),
	})
}

func TestDecide_FailOpenIsDefault(t *testing.T) {
	controller := newFailingFixture(t, "")
	ctx := context.Background()
	id := user("42")

	res := controller.Decide(ctx, id, "api/v1/teams")
	defer controller.Release(ctx, id, res)

	if !res.Allowed {
		t.Fatal("default policy must fail open")
	}
	if !res.FailedOpen {
		t.Error("fail-open admissions must be flagged")
	}
}

func TestDecide_FailClosed(t *testing.T) {
	controller := newFailingFixture(t, FailClosed)
	ctx := context.Background()
	id := user("42")

	res := controller.Decide(ctx, id, "api/v1/teams")
	defer controller.Release(ctx, id, res)

	if res.Allowed {
		t.Fatal("fail-closed policy must deny on infrastructure failure")
	}
	if res.FailedOpen {
		t.Error("fail-closed denial must not be flagged as fail-open")
	}
	if res.RetryAfter <= 0 {
		t.Error("fail-closed denial should carry a retry hint")
	}
}

func TestRelease_SkipsSlotNeverClaimed(t *testing.T) {
	// A failing window store resolves the decision through the failure
	// policy before any slot is claimed. Release on that result must not
	// decrement a slot held by another in-flight request.
	tracker := concurrency.NewMemoryTracker()
	t.Cleanup(func() { tracker.Close() })
	ctx := context.Background()
	id := user("42")

	// Another request holds the only claimed slot.
	if _, err := tracker.Acquire(ctx, id.Key()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	controller := NewController(Config{
		Windows:       failingWindowStore{},
		Concurrency:   tracker,
		Subscriptions: billing.NewStaticSubscriptions(billing.StaticConfig{DefaultTier: "free"}),
		Logger:        discardLogger(),
	})

	res := controller.Decide(ctx, id, "api/v1/teams")
	controller.Release(ctx, id, res)

	before, err := tracker.Acquire(ctx, id.Key())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if before != 1 {
		t.Errorf("in-flight count = %d, want 1 (the other request's slot intact)", before)
	}
}

func TestResult_RemainingHourly(t *testing.T) {
	res := &Result{
		CostWeight: 1.0,
		Limits:     tiers.Tier{RequestsPerHour: 1000},
		Usage:      UsageSnapshot{Hourly: window.Usage{TotalCost: 400}},
	}
	if got := res.RemainingHourly(); got != 599 {
		t.Errorf("RemainingHourly() = %v, want 599", got)
	}

	res.Limits = tiers.Tier{Unlimited: true}
	if got := res.RemainingHourly(); got != -1 {
		t.Errorf("RemainingHourly() on unlimited = %v, want -1", got)
	}
}
