package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the admission engine. Labels stay
// low-cardinality: identity kind, not identity value.
type Metrics struct {
	decisions        *prometheus.CounterVec
	limitHits        *prometheus.CounterVec
	failurePolicy    *prometheus.CounterVec
	overageBilledUSD prometheus.Counter
	decisionDuration prometheus.Histogram
}

// NewMetrics creates admission metrics registered on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_admission_decisions_total",
				Help: "Total admission decisions by result and identity kind",
			},
			[]string{"result", "identity_kind"},
		),

		limitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_admission_limit_hits_total",
				Help: "Total denials by limit type",
			},
			[]string{"limit_type"},
		),

		failurePolicy: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_admission_failure_policy_total",
				Help: "Decisions resolved by the failure policy after an infrastructure fault",
			},
			[]string{"policy"},
		),

		overageBilledUSD: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "saturn_admission_overage_billed_usd_total",
				Help: "Cumulative overage charges in USD",
			},
		),

		decisionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "saturn_admission_decision_duration_seconds",
				Help:    "Duration of admission decisions",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),
	}
}

// RecordDecision records a decision outcome.
func (m *Metrics) RecordDecision(result *Result, identityKind string) {
	outcome := "allowed"
	switch {
	case !result.Allowed:
		outcome = "denied"
		m.limitHits.WithLabelValues(string(result.LimitTypeHit)).Inc()
	case result.Overage():
		outcome = "overage"
	}
	m.decisions.WithLabelValues(outcome, identityKind).Inc()

	if result.OverageCost > 0 {
		m.overageBilledUSD.Add(result.OverageCost)
	}
}

// RecordFailurePolicy records a decision resolved by the failure policy.
func (m *Metrics) RecordFailurePolicy(policy FailurePolicy) {
	m.failurePolicy.WithLabelValues(string(policy)).Inc()
}

// ObserveDecisionDuration records how long a decision took, in seconds.
func (m *Metrics) ObserveDecisionDuration(seconds float64) {
	m.decisionDuration.Observe(seconds)
}
