package costmodel

import (
	"log/slog"
	"regexp"
	"strings"
)

// DefaultWeight is the cost of an endpoint with no matching rule.
const DefaultWeight = 1.0

// Rule pairs an endpoint pattern with a cost weight. Patterns treat "*" as
// a wildcard; all other characters match literally.
type Rule struct {
	Pattern string
	Weight  float64
}

// Model resolves endpoint paths to cost weights via an ordered rule list.
// A Model is immutable after construction and safe for concurrent use;
// configuration reloads build a new Model and swap it in atomically.
type Model struct {
	rules []compiledRule
}

type compiledRule struct {
	pattern string
	re      *regexp.Regexp
	weight  float64
}

// New compiles an ordered rule list into a Model.
//
// Malformed patterns are dropped and non-positive weights clamped to the
// default, with a warning log in both cases. A bad rule table can therefore
// degrade cost accuracy but can never break admission decisions.
func New(rules []Rule, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := compilePattern(r.Pattern)
		if err != nil {
			logger.Warn("dropping malformed cost rule",
				"pattern", r.Pattern,
				"error", err,
			)
			continue
		}

		weight := r.Weight
		if weight <= 0 {
			logger.Warn("clamping non-positive cost weight",
				"pattern", r.Pattern,
				"weight", r.Weight,
			)
			weight = DefaultWeight
		}

		compiled = append(compiled, compiledRule{
			pattern: r.Pattern,
			re:      re,
			weight:  weight,
		})
	}

	return &Model{rules: compiled}
}

// WeightFor returns the cost weight for an endpoint path.
//
// The endpoint is normalized (leading/trailing slashes stripped) and checked
// against the rules in order; the first match wins. Unmatched endpoints cost
// DefaultWeight.
func (m *Model) WeightFor(endpoint string) float64 {
	normalized := Normalize(endpoint)

	for _, r := range m.rules {
		if r.re.MatchString(normalized) {
			return r.weight
		}
	}
	return DefaultWeight
}

// Rules returns the patterns and weights that compiled successfully, in
// match order. Used by config validation output and tests.
func (m *Model) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	for i, r := range m.rules {
		out[i] = Rule{Pattern: r.pattern, Weight: r.weight}
	}
	return out
}

// Normalize strips leading and trailing slashes from an endpoint path.
func Normalize(endpoint string) string {
	return strings.Trim(endpoint, "/")
}

// compilePattern turns a wildcard pattern into an anchored, case-insensitive
// regexp. "*" matches any span of characters; everything else is literal.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	normalized := Normalize(pattern)

	var b strings.Builder
	b.WriteString("(?i)^")
	for i, part := range strings.Split(normalized, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString("$")

	return regexp.Compile(b.String())
}
