// Package admission decides whether an API request is allowed, denied, or
// allowed with billed overage.
//
// # Decision pipeline
//
// Controller.Decide runs an ordered, short-circuiting pipeline per request:
// endpoint cost weight, effective tier limits, both sliding-window totals,
// and the in-flight concurrency count feed three checks in fixed order:
// hourly cap (with the overage escape hatch), then burst cap, then the
// concurrency cap.
// Comparisons operate on cost-weighted totals and equality at a cap passes;
// only strictly exceeding it denies.
//
// # Outcomes are values
//
// A denial is an ordinary Result, never an error. The only true errors are
// infrastructure faults (counter store unreachable) and they never escape
// Decide: the configured failure policy converts them to an allow (default,
// with a mandatory warning log) or a deny. Platform availability outranks
// strict enforcement, which is why fail-open is the default; the policy is
// explicit configuration and independently testable.
//
// # Call contract
//
// Decide acquires a concurrency slot for every evaluated request, so the
// caller must invoke Release exactly once afterwards regardless of outcome,
// typically via defer right after Decide returns.
package admission
