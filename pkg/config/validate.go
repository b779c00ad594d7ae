package config

import (
	"fmt"
	"net"
	"net/url"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for errors. It is called after
// defaults are applied, so zero values that have defaults never reach it.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validateAdmission(&cfg.Admission); err != nil {
		return fmt.Errorf("admission: %w", err)
	}
	if err := validateRedis(&cfg.Redis); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := validateLedger(&cfg.Ledger); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen_address %q: %w", cfg.ListenAddress, err)
	}
	if cfg.UpstreamURL != "" {
		u, err := url.Parse(cfg.UpstreamURL)
		if err != nil {
			return fmt.Errorf("invalid upstream_url %q: %w", cfg.UpstreamURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("upstream_url %q must use http or https", cfg.UpstreamURL)
		}
		if u.Host == "" {
			return fmt.Errorf("upstream_url %q has no host", cfg.UpstreamURL)
		}
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", cfg.ShutdownTimeout)
	}
	return nil
}

func validateAdmission(cfg *AdmissionConfig) error {
	switch cfg.FailurePolicy {
	case "open", "closed":
	default:
		return fmt.Errorf("failure_policy must be \"open\" or \"closed\", got %q", cfg.FailurePolicy)
	}

	if cfg.OveragePerUnitUSD < 0 {
		return fmt.Errorf("overage_per_unit_usd must not be negative, got %v", cfg.OveragePerUnitUSD)
	}

	for i, rule := range cfg.CostRules {
		if rule.Pattern == "" {
			return fmt.Errorf("cost_rules[%d]: pattern must not be empty", i)
		}
		if rule.Weight <= 0 {
			return fmt.Errorf("cost_rules[%d] (%q): weight must be positive, got %v", i, rule.Pattern, rule.Weight)
		}
	}

	seen := make(map[string]bool, len(cfg.Tiers))
	for i, tier := range cfg.Tiers {
		if tier.Name == "" {
			return fmt.Errorf("tiers[%d]: name must not be empty", i)
		}
		if seen[tier.Name] {
			return fmt.Errorf("tiers[%d]: duplicate tier name %q", i, tier.Name)
		}
		seen[tier.Name] = true

		if tier.Unlimited {
			continue
		}
		if tier.RequestsPerHour <= 0 {
			return fmt.Errorf("tier %q: requests_per_hour must be positive", tier.Name)
		}
		if tier.BurstPerMinute <= 0 {
			return fmt.Errorf("tier %q: burst_per_minute must be positive", tier.Name)
		}
		if tier.ConcurrentRequests < 0 {
			return fmt.Errorf("tier %q: concurrent_requests must not be negative", tier.Name)
		}
	}

	if len(cfg.Tiers) > 0 && !seen[cfg.DefaultTier] {
		return fmt.Errorf("default_tier %q is not in the tier catalog", cfg.DefaultTier)
	}

	return nil
}

func validateRedis(cfg *RedisConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", cfg.Address, err)
	}
	if cfg.DB < 0 {
		return fmt.Errorf("db must not be negative, got %d", cfg.DB)
	}
	return nil
}

func validateLedger(cfg *LedgerConfig) error {
	switch cfg.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("backend must be \"sqlite\" or \"memory\", got %q", cfg.Backend)
	}
	if cfg.Backend == "sqlite" && cfg.Path == "" {
		return fmt.Errorf("path must not be empty for the sqlite backend")
	}
	if cfg.RetentionDays > 0 {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			return fmt.Errorf("invalid prune_schedule %q: %w", cfg.PruneSchedule, err)
		}
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("logging.format must be one of json, text, console; got %q", cfg.Logging.Format)
	}
	if cfg.Metrics.Path == "" || cfg.Metrics.Path[0] != '/' {
		return fmt.Errorf("metrics.path must start with /, got %q", cfg.Metrics.Path)
	}
	return nil
}
