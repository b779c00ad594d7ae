package config

import (
	"strings"
	"testing"
)

// validConfig returns a fully defaulted configuration that the mutation
// tests below break one field at a time.
func validConfig() *Config {
	return DefaultConfig()
}

func TestValidate_Accepts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.UpstreamURL = "https://api.clubline.example"
	cfg.Admission.CostRules = []CostRuleConfig{{Pattern: "api/v1/analytics/*", Weight: 5}}
	cfg.Admission.Tiers = []TierConfig{
		{Name: "free", RequestsPerHour: 1000, BurstPerMinute: 100, ConcurrentRequests: 10},
		{Name: "internal", Unlimited: true},
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		errPart string
	}{
		{
			name:    "bad listen address",
			mutate:  func(c *Config) { c.Server.ListenAddress = "no-port" },
			errPart: "listen_address",
		},
		{
			name:    "upstream without scheme",
			mutate:  func(c *Config) { c.Server.UpstreamURL = "api.internal:8000" },
			errPart: "upstream_url",
		},
		{
			name:    "unknown failure policy",
			mutate:  func(c *Config) { c.Admission.FailurePolicy = "maybe" },
			errPart: "failure_policy",
		},
		{
			name: "zero weight cost rule",
			mutate: func(c *Config) {
				c.Admission.CostRules = []CostRuleConfig{{Pattern: "api/*", Weight: 0}}
			},
			errPart: "weight",
		},
		{
			name: "empty cost rule pattern",
			mutate: func(c *Config) {
				c.Admission.CostRules = []CostRuleConfig{{Weight: 1}}
			},
			errPart: "pattern",
		},
		{
			name: "duplicate tier name",
			mutate: func(c *Config) {
				c.Admission.DefaultTier = "pro"
				c.Admission.Tiers = []TierConfig{
					{Name: "pro", RequestsPerHour: 1, BurstPerMinute: 1},
					{Name: "pro", RequestsPerHour: 2, BurstPerMinute: 2},
				}
			},
			errPart: "duplicate",
		},
		{
			name: "limited tier without hourly cap",
			mutate: func(c *Config) {
				c.Admission.DefaultTier = "broken"
				c.Admission.Tiers = []TierConfig{{Name: "broken", BurstPerMinute: 10}}
			},
			errPart: "requests_per_hour",
		},
		{
			name: "default tier missing from catalog",
			mutate: func(c *Config) {
				c.Admission.Tiers = []TierConfig{{Name: "pro", RequestsPerHour: 1, BurstPerMinute: 1}}
			},
			errPart: "default_tier",
		},
		{
			name: "redis enabled with bad address",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Address = "redis.internal"
			},
			errPart: "address",
		},
		{
			name:    "unknown ledger backend",
			mutate:  func(c *Config) { c.Ledger.Backend = "postgres" },
			errPart: "backend",
		},
		{
			name:    "bad prune schedule",
			mutate:  func(c *Config) { c.Ledger.PruneSchedule = "every day at 3" },
			errPart: "prune_schedule",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			errPart: "logging.level",
		},
		{
			name:    "metrics path without slash",
			mutate:  func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			errPart: "metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error %q does not mention %q", err, tt.errPart)
			}
		})
	}
}

func TestValidate_DisabledRedisSkipsAddressCheck(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Address = "whatever"

	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled redis should not be validated: %v", err)
	}
}

func TestValidate_RetentionDisabledSkipsScheduleCheck(t *testing.T) {
	cfg := validConfig()
	cfg.Ledger.RetentionDays = -1
	cfg.Ledger.PruneSchedule = "not a cron line"

	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled retention should not validate the schedule: %v", err)
	}
}
