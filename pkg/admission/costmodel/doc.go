// Package costmodel maps endpoint paths to cost weights.
//
// Not every API call is equally expensive: listing a team's roster is cheap,
// while analytics aggregations or tournament bracket generation hit the
// backend hard. The cost model assigns each endpoint a weight so that rate
// limit comparisons operate on cost-weighted totals rather than raw request
// counts.
//
// Rules are ordered and first-match-wins. Patterns use "*" as a wildcard and
// are compiled once at load time into anchored, case-insensitive matchers;
// nothing is compiled on the request path. Endpoints without a matching rule
// cost 1.0. WeightFor never fails and always returns a finite positive value.
package costmodel
