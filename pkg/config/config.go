package config

import (
	"time"

	"clubline-hq/saturn/pkg/admission/costmodel"
	"clubline-hq/saturn/pkg/admission/tiers"
)

// Config is the root configuration structure for Saturn.
type Config struct {
	// Server contains the HTTP gateway configuration: listen address,
	// upstream target, and timeouts.
	Server ServerConfig `yaml:"server"`

	// Admission contains the decision engine configuration: cost rules,
	// tier catalog, failure policy, and denied-request accounting.
	Admission AdmissionConfig `yaml:"admission"`

	// Redis configures the shared counter backend. When disabled the
	// counters live in process memory.
	Redis RedisConfig `yaml:"redis"`

	// Snapshots configures periodic persistence of in-memory window
	// counters across restarts. Ignored when Redis is enabled.
	Snapshots SnapshotConfig `yaml:"snapshots"`

	// Ledger configures the durable per-request usage ledger.
	Ledger LedgerConfig `yaml:"ledger"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP gateway.
type ServerConfig struct {
	// ListenAddress is the address and port for the gateway to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// UpstreamURL is the backend API the gateway proxies admitted
	// requests to. Empty runs the gateway in decision-only mode where
	// admitted requests get a 204 instead of being proxied.
	UpstreamURL string `yaml:"upstream_url"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AdmissionConfig contains the decision engine configuration.
type AdmissionConfig struct {
	// FailurePolicy is "open" or "closed": admit or deny when the counter
	// store is unreachable. Default: "open"
	FailurePolicy string `yaml:"failure_policy"`

	// CountDenied controls whether denied requests consume window quota.
	// Default: true
	CountDenied *bool `yaml:"count_denied"`

	// DefaultTier is assigned to identities without a subscription.
	// Default: "free"
	DefaultTier string `yaml:"default_tier"`

	// OveragePerUnitUSD is the price of one cost unit past the hourly cap
	// for overage-entitled subscriptions. Default: 0.004
	OveragePerUnitUSD float64 `yaml:"overage_per_unit_usd"`

	// CostRules is the ordered endpoint cost table. First match wins;
	// unmatched endpoints weigh 1.0.
	CostRules []CostRuleConfig `yaml:"cost_rules"`

	// Tiers replaces the built-in tier catalog when non-empty.
	Tiers []TierConfig `yaml:"tiers"`

	// ExceptionCacheTTL bounds staleness of cached per-identity
	// exceptions. Default: 5s
	ExceptionCacheTTL time.Duration `yaml:"exception_cache_ttl"`
}

// CostRuleConfig is one endpoint cost rule.
type CostRuleConfig struct {
	// Pattern is a case-insensitive endpoint pattern; "*" matches any
	// span of characters (e.g. "api/v1/analytics/*").
	Pattern string `yaml:"pattern"`

	// Weight is the cost in request units, must be positive.
	Weight float64 `yaml:"weight"`
}

// TierConfig is one subscription tier definition.
type TierConfig struct {
	Name               string  `yaml:"name"`
	RequestsPerHour    float64 `yaml:"requests_per_hour"`
	BurstPerMinute     float64 `yaml:"burst_per_minute"`
	ConcurrentRequests int64   `yaml:"concurrent_requests"`
	CostMultiplier     float64 `yaml:"cost_multiplier"`
	Priority           int     `yaml:"priority"`
	Unlimited          bool    `yaml:"unlimited"`
}

// RedisConfig contains the shared counter backend configuration.
type RedisConfig struct {
	// Enabled switches the window counters and concurrency tracker to
	// Redis. Default: false (in-process memory)
	Enabled bool `yaml:"enabled"`

	// Address is the Redis host:port. Default: "127.0.0.1:6379"
	Address string `yaml:"address"`

	// Password authenticates to Redis. Empty means no auth.
	Password string `yaml:"password"`

	// DB is the Redis logical database number.
	DB int `yaml:"db"`
}

// SnapshotConfig contains window counter snapshot configuration.
type SnapshotConfig struct {
	// Enabled turns snapshot persistence on. Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite file the snapshots are written to.
	// Default: "saturn-snapshots.db"
	Path string `yaml:"path"`

	// Interval is the time between snapshot writes. Default: 30s
	Interval time.Duration `yaml:"interval"`
}

// LedgerConfig contains the usage ledger configuration.
type LedgerConfig struct {
	// Backend is "sqlite" or "memory". Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite file. Default: "saturn-ledger.db"
	Path string `yaml:"path"`

	// RetentionDays is how long records are kept before the nightly
	// pruner removes them. Zero or negative disables pruning.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for the retention job.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error". Default: "info"
	Level string `yaml:"level"`

	// Format is "json", "text", or "console". Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint. Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the metrics endpoint path. Default: "/metrics"
	Path string `yaml:"path"`
}

// CostModelRules converts the configured cost rules to the engine type.
func (c *AdmissionConfig) CostModelRules() []costmodel.Rule {
	rules := make([]costmodel.Rule, 0, len(c.CostRules))
	for _, r := range c.CostRules {
		rules = append(rules, costmodel.Rule{Pattern: r.Pattern, Weight: r.Weight})
	}
	return rules
}

// TierCatalog converts the configured tiers to the engine type. Empty
// input means the caller should use the built-in catalog.
func (c *AdmissionConfig) TierCatalog() []tiers.Tier {
	defs := make([]tiers.Tier, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		defs = append(defs, tiers.Tier{
			Name:               t.Name,
			RequestsPerHour:    t.RequestsPerHour,
			BurstPerMinute:     t.BurstPerMinute,
			ConcurrentRequests: t.ConcurrentRequests,
			CostMultiplier:     t.CostMultiplier,
			Priority:           t.Priority,
			Unlimited:          t.Unlimited,
		})
	}
	return defs
}

// CountDeniedOrDefault returns the denied-request accounting flag with
// its default applied.
func (c *AdmissionConfig) CountDeniedOrDefault() bool {
	if c.CountDenied == nil {
		return true
	}
	return *c.CountDenied
}

// MetricsEnabledOrDefault returns the metrics flag with its default
// applied.
func (m *MetricsConfig) MetricsEnabledOrDefault() bool {
	if m.Enabled == nil {
		return true
	}
	return *m.Enabled
}
