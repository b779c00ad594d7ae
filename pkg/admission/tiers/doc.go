// Package tiers defines subscription tier limits and resolves the effective
// limits for an identity.
//
// The catalog is a static table of five built-in tiers with monotonically
// increasing limits. The unlimited tier is flagged explicitly rather than
// encoded as a large number, so it can never leak into cap arithmetic.
//
// On top of the catalog, admin-managed exceptions can temporarily override
// individual limit fields for a single identity, scoped to an endpoint
// pattern and a validity window. The Resolver folds active exceptions over
// the base tier in creation order; later exceptions win on conflicting
// fields and unmentioned fields pass through unchanged.
package tiers
