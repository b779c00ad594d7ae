package tiers

// TierFree is the lowest tier and the fail-closed default for unknown
// tier names.
const TierFree = "free"

// Catalog is a static table of tier definitions. It is immutable after
// construction and safe for concurrent use; configuration reloads build a
// new Catalog and swap it in atomically.
type Catalog struct {
	tiers map[string]Tier
}

// BuiltinTiers returns the five built-in tier definitions, limits
// monotonically increasing from free to unlimited.
func BuiltinTiers() []Tier {
	return []Tier{
		{
			Name:               "free",
			RequestsPerHour:    1000,
			BurstPerMinute:     100,
			ConcurrentRequests: 10,
			CostMultiplier:     1.0,
			Priority:           0,
		},
		{
			Name:               "starter",
			RequestsPerHour:    5000,
			BurstPerMinute:     250,
			ConcurrentRequests: 25,
			CostMultiplier:     1.0,
			Priority:           10,
		},
		{
			Name:               "pro",
			RequestsPerHour:    20000,
			BurstPerMinute:     500,
			ConcurrentRequests: 50,
			CostMultiplier:     0.9,
			Priority:           20,
		},
		{
			Name:               "business",
			RequestsPerHour:    100000,
			BurstPerMinute:     1500,
			ConcurrentRequests: 100,
			CostMultiplier:     0.8,
			Priority:           30,
		},
		{
			Name:               "unlimited",
			ConcurrentRequests: 250,
			CostMultiplier:     0.8,
			Priority:           40,
			Unlimited:          true,
		},
	}
}

// NewCatalog builds a catalog from tier definitions. A nil or empty slice
// yields the built-in tiers. A free tier is always present: if the input
// does not define one, the built-in free tier is added so that fail-closed
// resolution has somewhere to land.
func NewCatalog(defs []Tier) *Catalog {
	if len(defs) == 0 {
		defs = BuiltinTiers()
	}

	tiers := make(map[string]Tier, len(defs))
	for _, d := range defs {
		tiers[d.Name] = d
	}
	if _, ok := tiers[TierFree]; !ok {
		tiers[TierFree] = BuiltinTiers()[0]
	}

	return &Catalog{tiers: tiers}
}

// LimitsFor returns the definition for a tier name. Unknown names fail
// closed to the free tier rather than erroring.
func (c *Catalog) LimitsFor(name string) Tier {
	if t, ok := c.tiers[name]; ok {
		return t
	}
	return c.tiers[TierFree]
}

// Names returns the defined tier names. Order is unspecified.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tiers))
	for name := range c.tiers {
		names = append(names, name)
	}
	return names
}
