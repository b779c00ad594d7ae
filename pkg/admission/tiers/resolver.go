package tiers

import (
	"context"
	"log/slog"

	"clubline-hq/saturn/pkg/billing"
	"clubline-hq/saturn/pkg/identity"
)

// Resolver computes the effective limits for an identity and endpoint by
// composing the tier catalog with active exceptions.
//
// Resolution is pure and never fails out to the caller: exception store
// errors degrade to the base tier with a warning log, and unknown tiers fail
// closed to free via the catalog.
type Resolver struct {
	subscriptions billing.Subscriptions
	exceptions    ExceptionStore
	logger        *slog.Logger
}

// NewResolver creates a resolver. The exception store may be nil, in which
// case only the catalog determines limits.
func NewResolver(subscriptions billing.Subscriptions, exceptions ExceptionStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		subscriptions: subscriptions,
		exceptions:    exceptions,
		logger:        logger.With("component", "admission.resolver"),
	}
}

// EffectiveLimits returns the limits that apply to the identity for the
// endpoint, against the given catalog.
//
// Anonymous identities always get the free tier and exceptions never apply
// to them. For everyone else the subscription tier is the base, and active
// exceptions are folded over it left-to-right in creation order: each may
// override one or more fields, later exceptions win on conflicts, and
// unmentioned fields pass through unchanged.
func (r *Resolver) EffectiveLimits(ctx context.Context, catalog *Catalog, id identity.Identity, endpoint string) Tier {
	if id.Anonymous() {
		return catalog.LimitsFor(TierFree)
	}

	base := catalog.LimitsFor(r.subscriptions.TierName(ctx, id))
	if r.exceptions == nil {
		return base
	}

	active, err := r.exceptions.FindActive(ctx, id.Key(), endpoint)
	if err != nil {
		r.logger.Warn("exception lookup failed, using base tier",
			"identity", id.Key(),
			"endpoint", endpoint,
			"error", err,
		)
		return base
	}

	return applyExceptions(base, active)
}

// applyExceptions folds exceptions over a tier, left to right.
func applyExceptions(base Tier, exceptions []Exception) Tier {
	effective := base
	for _, e := range exceptions {
		if e.RequestsPerHour != nil {
			effective.RequestsPerHour = *e.RequestsPerHour
		}
		if e.BurstPerMinute != nil {
			effective.BurstPerMinute = *e.BurstPerMinute
		}
		if e.ConcurrentRequests != nil {
			effective.ConcurrentRequests = *e.ConcurrentRequests
		}
	}
	return effective
}
