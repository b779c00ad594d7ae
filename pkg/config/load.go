package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention SATURN_SECTION_FIELD (e.g. SATURN_SERVER_LISTEN_ADDRESS)
// and always take precedence over file values.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies SATURN_SECTION_FIELD environment variables.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("SATURN_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("SATURN_SERVER_UPSTREAM_URL"); val != "" {
		cfg.Server.UpstreamURL = val
	}
	if val := os.Getenv("SATURN_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("SATURN_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("SATURN_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("SATURN_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Admission overrides
	if val := os.Getenv("SATURN_ADMISSION_FAILURE_POLICY"); val != "" {
		cfg.Admission.FailurePolicy = val
	}
	if val := os.Getenv("SATURN_ADMISSION_COUNT_DENIED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Admission.CountDenied = &b
		}
	}
	if val := os.Getenv("SATURN_ADMISSION_DEFAULT_TIER"); val != "" {
		cfg.Admission.DefaultTier = val
	}
	if val := os.Getenv("SATURN_ADMISSION_OVERAGE_PER_UNIT_USD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Admission.OveragePerUnitUSD = f
		}
	}
	if val := os.Getenv("SATURN_ADMISSION_EXCEPTION_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Admission.ExceptionCacheTTL = d
		}
	}

	// Redis overrides
	if val := os.Getenv("SATURN_REDIS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if val := os.Getenv("SATURN_REDIS_ADDRESS"); val != "" {
		cfg.Redis.Address = val
	}
	if val := os.Getenv("SATURN_REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("SATURN_REDIS_DB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = i
		}
	}

	// Snapshot overrides
	if val := os.Getenv("SATURN_SNAPSHOTS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Snapshots.Enabled = b
		}
	}
	if val := os.Getenv("SATURN_SNAPSHOTS_PATH"); val != "" {
		cfg.Snapshots.Path = val
	}
	if val := os.Getenv("SATURN_SNAPSHOTS_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Snapshots.Interval = d
		}
	}

	// Ledger overrides
	if val := os.Getenv("SATURN_LEDGER_BACKEND"); val != "" {
		cfg.Ledger.Backend = val
	}
	if val := os.Getenv("SATURN_LEDGER_PATH"); val != "" {
		cfg.Ledger.Path = val
	}
	if val := os.Getenv("SATURN_LEDGER_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Ledger.RetentionDays = i
		}
	}
	if val := os.Getenv("SATURN_LEDGER_PRUNE_SCHEDULE"); val != "" {
		cfg.Ledger.PruneSchedule = val
	}

	// Telemetry overrides
	if val := os.Getenv("SATURN_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("SATURN_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("SATURN_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	if val := os.Getenv("SATURN_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}
