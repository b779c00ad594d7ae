package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultFailurePolicy     = "open"
	DefaultTierName          = "free"
	DefaultOveragePerUnit    = 0.004
	DefaultExceptionCacheTTL = 5 * time.Second

	DefaultRedisAddress = "127.0.0.1:6379"

	DefaultSnapshotPath     = "saturn-snapshots.db"
	DefaultSnapshotInterval = 30 * time.Second

	DefaultLedgerBackend = "sqlite"
	DefaultLedgerPath    = "saturn-ledger.db"
	DefaultRetentionDays = 90
	DefaultPruneSchedule = "0 3 * * *"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultMetricsPath   = "/metrics"
)

// ApplyDefaults fills zero-valued fields with their defaults. It never
// overrides a value the file or environment set.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Admission.FailurePolicy == "" {
		cfg.Admission.FailurePolicy = DefaultFailurePolicy
	}
	if cfg.Admission.DefaultTier == "" {
		cfg.Admission.DefaultTier = DefaultTierName
	}
	if cfg.Admission.OveragePerUnitUSD == 0 {
		cfg.Admission.OveragePerUnitUSD = DefaultOveragePerUnit
	}
	if cfg.Admission.ExceptionCacheTTL == 0 {
		cfg.Admission.ExceptionCacheTTL = DefaultExceptionCacheTTL
	}

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = DefaultRedisAddress
	}

	if cfg.Snapshots.Path == "" {
		cfg.Snapshots.Path = DefaultSnapshotPath
	}
	if cfg.Snapshots.Interval == 0 {
		cfg.Snapshots.Interval = DefaultSnapshotInterval
	}

	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = DefaultLedgerBackend
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = DefaultLedgerPath
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = DefaultRetentionDays
	}
	if cfg.Ledger.PruneSchedule == "" {
		cfg.Ledger.PruneSchedule = DefaultPruneSchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// DefaultConfig returns a fully defaulted configuration with no file
// input, suitable for running the gateway without a config file.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
