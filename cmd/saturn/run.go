package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"clubline-hq/saturn/pkg/admission"
	"clubline-hq/saturn/pkg/admission/concurrency"
	"clubline-hq/saturn/pkg/admission/recorder"
	"clubline-hq/saturn/pkg/admission/storage"
	"clubline-hq/saturn/pkg/admission/tiers"
	"clubline-hq/saturn/pkg/admission/window"
	"clubline-hq/saturn/pkg/billing"
	"clubline-hq/saturn/pkg/config"
	"clubline-hq/saturn/pkg/ledger"
	"clubline-hq/saturn/pkg/server"
	"clubline-hq/saturn/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Saturn admission gateway",
	Long: `Start the admission gateway with the specified configuration.

The gateway listens on the configured address, judges every request
against the caller's tier limits, and proxies admitted requests to the
upstream API. Without an upstream it runs in decision-only mode.

Examples:
  # Start with default config
  saturn run

  # Start with custom config
  saturn run --config /etc/saturn/saturn.yaml

  # Override listen address
  saturn run --listen 0.0.0.0:8080

  # Validate config without starting
  saturn run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

// loadConfig loads the configured file, falling back to built-in
// defaults when the default file is absent and no --config was given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) && !cmd.Flags().Changed("config") {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Saturn v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	metrics := admission.NewMetrics(registry)

	// Counter backends: shared Redis, or in-process memory with
	// optional snapshot persistence across restarts.
	var windows window.Store
	var tracker concurrency.Tracker
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		redisWindows, err := window.NewRedisStore(ctx, client)
		if err != nil {
			return fmt.Errorf("failed to connect window store to redis: %w", err)
		}
		redisTracker, err := concurrency.NewRedisTracker(ctx, client)
		if err != nil {
			return fmt.Errorf("failed to connect concurrency tracker to redis: %w", err)
		}
		windows, tracker = redisWindows, redisTracker
		fmt.Printf("✓ Counters backed by Redis at %s\n", cfg.Redis.Address)
	} else {
		memWindows := window.NewMemoryStore()
		memTracker := concurrency.NewMemoryTracker()
		defer memTracker.Close()
		windows, tracker = memWindows, memTracker

		if cfg.Snapshots.Enabled {
			backend, err := storage.NewSQLiteBackend(cfg.Snapshots.Path)
			if err != nil {
				return fmt.Errorf("failed to open snapshot store: %w", err)
			}
			defer backend.Close()

			if snapshot, err := backend.LoadAll(ctx); err != nil {
				logger.Warn("failed to load window snapshots", "error", err)
			} else if len(snapshot) > 0 {
				memWindows.Restore(snapshot)
				logger.Info("window counters restored", "identities", len(snapshot))
			}

			go snapshotLoop(ctx, memWindows, backend, cfg.Snapshots.Interval, logger)
			fmt.Printf("✓ Counter snapshots at %s every %s\n", cfg.Snapshots.Path, cfg.Snapshots.Interval)
		}
	}

	// Usage ledger.
	var ledgerStore ledger.Storage
	switch cfg.Ledger.Backend {
	case "sqlite":
		ledgerStore, err = ledger.NewSQLiteStorage(cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
	case "memory":
		ledgerStore = ledger.NewMemoryStorage()
	default:
		return fmt.Errorf("unsupported ledger backend: %s", cfg.Ledger.Backend)
	}
	defer ledgerStore.Close()

	pruner := ledger.NewPruner(ledgerStore, ledger.RetentionConfig{
		RetentionPeriod: time.Duration(cfg.Ledger.RetentionDays) * 24 * time.Hour,
		Schedule:        cfg.Ledger.PruneSchedule,
	}, logger)
	if err := pruner.Start(ctx); err != nil {
		logger.Warn("failed to start ledger pruner", "error", err)
	} else {
		defer pruner.Stop()
	}
	fmt.Println("✓ Usage ledger initialized")

	subscriptions := billing.NewStaticSubscriptions(billing.StaticConfig{
		DefaultTier:       cfg.Admission.DefaultTier,
		OveragePerUnitUSD: cfg.Admission.OveragePerUnitUSD,
	})
	exceptions := tiers.NewCachedExceptionStore(
		tiers.NewMemoryExceptionStore(),
		cfg.Admission.ExceptionCacheTTL,
	)

	controller := admission.NewController(admission.Config{
		CostRules:     cfg.Admission.CostModelRules(),
		Tiers:         cfg.Admission.TierCatalog(),
		FailurePolicy: admission.FailurePolicy(cfg.Admission.FailurePolicy),
		Windows:       windows,
		Concurrency:   tracker,
		Subscriptions: subscriptions,
		Exceptions:    exceptions,
		Logger:        logger,
		Metrics:       metrics,
	})

	recorderCfg := recorder.DefaultConfig()
	recorderCfg.CountDenied = cfg.Admission.CountDeniedOrDefault()
	rec := recorder.New(ledgerStore, windows, nil, recorderCfg, logger)
	defer rec.Close()

	// Hot reload of the cost rules and tier catalog on config change.
	if _, err := os.Stat(cfgFile); err == nil {
		watcher, err := config.NewWatcher(cfgFile, logger)
		if err != nil {
			logger.Warn("config watcher unavailable", "error", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx, func(newCfg *config.Config) {
					controller.SwapRules(newCfg.Admission.CostModelRules(), newCfg.Admission.TierCatalog())
				}); err != nil {
					logger.Error("config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
			fmt.Println("✓ Watching configuration for rule changes")
		}
	}

	srv, err := server.NewServer(&cfg.Server, &cfg.Telemetry.Metrics, controller, rec, registry, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Println()
	fmt.Printf("✓ Gateway listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.MetricsEnabledOrDefault() {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a shutdown signal or server error.
	return srv.Start(ctx)
}

// snapshotLoop periodically persists the in-memory window counters so a
// restart does not reset everyone's usage. A final snapshot is written
// on shutdown.
func snapshotLoop(ctx context.Context, windows *window.MemoryStore, backend storage.Backend, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	save := func(saveCtx context.Context) {
		for key, states := range windows.Snapshot() {
			if err := backend.Save(saveCtx, key, states); err != nil {
				logger.Warn("window snapshot write failed", "identity", key, "error", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			save(saveCtx)
			cancel()
			return
		case <-ticker.C:
			save(ctx)
			// Drop snapshot rows whose identities have gone idle.
			if _, err := backend.Cleanup(ctx, time.Now().Add(-2*time.Hour)); err != nil {
				logger.Warn("snapshot cleanup failed", "error", err)
			}
		}
	}
}
