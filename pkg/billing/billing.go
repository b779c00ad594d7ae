package billing

import (
	"context"
	"sync"

	"clubline-hq/saturn/pkg/identity"
)

// Subscriptions exposes the slice of the billing domain that admission
// control depends on. Implementations must be safe for concurrent use.
type Subscriptions interface {
	// TierName returns the subscription tier for an identity. Unknown
	// identities map to the default tier.
	TierName(ctx context.Context, id identity.Identity) string

	// OverageAllowed reports whether the identity's plan permits billed
	// usage past the hourly cap instead of a hard denial.
	OverageAllowed(ctx context.Context, id identity.Identity) bool

	// CalculateOverageCost prices a quantity of excess cost units in USD.
	CalculateOverageCost(ctx context.Context, excessUnits float64) float64
}

// StaticSubscriptions is an in-memory Subscriptions implementation backed by
// explicit per-identity assignments. It serves development, tests, and
// single-tenant deployments that configure plans in the config file.
type StaticSubscriptions struct {
	mu sync.RWMutex

	tiers       map[string]string // identity key -> tier name
	overage     map[string]bool   // identity key -> overage allowed
	defaultTier string
	perUnitUSD  float64
}

// StaticConfig configures a StaticSubscriptions.
type StaticConfig struct {
	// DefaultTier is assigned to identities without an explicit entry.
	DefaultTier string

	// OveragePerUnitUSD is the price of one excess cost unit.
	OveragePerUnitUSD float64
}

// NewStaticSubscriptions creates an empty static subscription table.
func NewStaticSubscriptions(cfg StaticConfig) *StaticSubscriptions {
	if cfg.DefaultTier == "" {
		cfg.DefaultTier = "free"
	}
	return &StaticSubscriptions{
		tiers:       make(map[string]string),
		overage:     make(map[string]bool),
		defaultTier: cfg.DefaultTier,
		perUnitUSD:  cfg.OveragePerUnitUSD,
	}
}

// Assign sets the tier and overage permission for an identity.
func (s *StaticSubscriptions) Assign(id identity.Identity, tier string, overageAllowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[id.Key()] = tier
	s.overage[id.Key()] = overageAllowed
}

// TierName returns the assigned tier, or the default tier.
func (s *StaticSubscriptions) TierName(_ context.Context, id identity.Identity) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tier, ok := s.tiers[id.Key()]; ok {
		return tier
	}
	return s.defaultTier
}

// OverageAllowed reports the assigned overage permission, defaulting to false.
func (s *StaticSubscriptions) OverageAllowed(_ context.Context, id identity.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overage[id.Key()]
}

// CalculateOverageCost prices excess units linearly at the configured rate.
func (s *StaticSubscriptions) CalculateOverageCost(_ context.Context, excessUnits float64) float64 {
	if excessUnits <= 0 {
		return 0
	}
	return excessUnits * s.perUnitUSD
}
