package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls scheduled ledger pruning.
type RetentionConfig struct {
	// RetentionPeriod is how long records are kept. Zero disables pruning.
	RetentionPeriod time.Duration

	// Schedule is a standard cron expression for when pruning runs.
	// Default: "0 3 * * *" (daily at 03:00).
	Schedule string
}

// Pruner deletes ledger records past the retention period on a cron
// schedule.
type Pruner struct {
	storage Storage
	config  RetentionConfig
	cron    *cron.Cron
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewPruner creates a pruner for the given storage.
func NewPruner(storage Storage, config RetentionConfig, logger *slog.Logger) *Pruner {
	if config.Schedule == "" {
		config.Schedule = "0 3 * * *"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  config,
		cron:    cron.New(),
		logger:  logger.With("component", "ledger.pruner"),
	}
}

// Start schedules pruning. A zero retention period disables the pruner.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.RetentionPeriod <= 0 {
		p.logger.Info("ledger retention not configured, pruner disabled")
		return nil
	}
	if p.running {
		return fmt.Errorf("pruner already running")
	}

	if _, err := cron.ParseStandard(p.config.Schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.config.Schedule, err)
	}
	if _, err := p.cron.AddFunc(p.config.Schedule, func() { p.prune(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("ledger pruner started",
		"schedule", p.config.Schedule,
		"retention", p.config.RetentionPeriod,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop halts scheduled pruning.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.cron.Stop()
	p.running = false
	p.logger.Info("ledger pruner stopped")
}

// prune runs one pruning cycle.
func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.RetentionPeriod)
	deleted, err := p.storage.Prune(ctx, cutoff)
	if err != nil {
		p.logger.Error("ledger pruning failed", "error", err)
		return
	}
	p.logger.Info("ledger pruning complete",
		"deleted", deleted,
		"cutoff", cutoff,
	)
}
