package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clubline-hq/saturn/pkg/admission"
	"clubline-hq/saturn/pkg/admission/window"
	"clubline-hq/saturn/pkg/identity"
	"clubline-hq/saturn/pkg/ledger"
)

// HighCostThreshold is the cost weight above which an allowed request is
// logged as a high-cost operation.
const HighCostThreshold = 5.0

// Config contains recorder configuration.
type Config struct {
	// CountDenied controls whether denied attempts still consume window
	// quota. Default true: throttled clients that keep retrying keep
	// pushing their own window out.
	CountDenied bool

	// AsyncBuffer is the ledger write channel size. Default 1000.
	AsyncBuffer int

	// WriteTimeout bounds a single ledger write. Default 5s.
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() Config {
	return Config{
		CountDenied:  true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder persists usage records and updates window counters after each
// decision. Ledger writes are asynchronous; window updates are not.
type Recorder struct {
	storage ledger.Storage
	windows window.Store
	geoip   identity.GeoIP
	config  Config
	logger  *slog.Logger

	recordChan chan *ledger.Record
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// New creates a recorder and starts its ledger worker. The GeoIP provider
// may be nil. Call Close to drain pending writes.
func New(storage ledger.Storage, windows window.Store, geo identity.GeoIP, cfg Config, logger *slog.Logger) *Recorder {
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		windows:    windows,
		geoip:      geo,
		config:     cfg,
		logger:     logger.With("component", "admission.recorder"),
		recordChan: make(chan *ledger.Record, cfg.AsyncBuffer),
		done:       make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()
	return r
}

// Record persists one request attempt and updates the usage windows.
func (r *Recorder) Record(ctx context.Context, id identity.Identity, endpoint string, res *admission.Result, metadata map[string]string) {
	r.updateWindows(ctx, id, res)
	r.logSignals(id, endpoint, res)

	rec := &ledger.Record{
		ID:           uuid.NewString(),
		Timestamp:    time.Now(),
		IdentityKey:  id.Key(),
		IdentityKind: string(id.Kind),
		Endpoint:     endpoint,
		CostWeight:   res.CostWeight,
		Allowed:      res.Allowed,
		LimitTypeHit: string(res.LimitTypeHit),
		OverageCost:  res.OverageCost,
		RetryAfter:   res.RetryAfter,
		FailedOpen:   res.FailedOpen,
		Metadata:     metadata,
	}
	if r.geoip != nil && id.Kind == identity.KindIP {
		rec.CountryCode = r.geoip.CountryCode(id.Value)
	}

	select {
	case r.recordChan <- rec:
	default:
		// The ledger is an audit trail; losing a record under backpressure
		// beats stalling the request path.
		r.logger.Warn("ledger buffer full, dropping usage record",
			"identity", rec.IdentityKey,
			"endpoint", rec.Endpoint,
		)
	}
}

// updateWindows charges the attempt's cost to both windows. Denied attempts
// are skipped when CountDenied is off.
func (r *Recorder) updateWindows(ctx context.Context, id identity.Identity, res *admission.Result) {
	if !res.Allowed && !r.config.CountDenied {
		return
	}

	for _, kind := range []window.Kind{window.KindHourly, window.KindMinutely} {
		if err := r.windows.Record(ctx, id.Key(), kind, res.CostWeight); err != nil {
			r.logger.Warn("window update failed",
				"identity", id.Key(),
				"window", string(kind),
				"error", err,
			)
		}
	}
}

// logSignals emits the structured entries downstream alerting keys on.
func (r *Recorder) logSignals(id identity.Identity, endpoint string, res *admission.Result) {
	if res.Allowed && res.CostWeight > HighCostThreshold {
		r.logger.Warn("high-cost operation",
			"identity", id.Key(),
			"endpoint", endpoint,
			"cost_weight", res.CostWeight,
			"overage_cost", res.OverageCost,
		)
	}

	if !res.Allowed && !res.Overage() {
		r.logger.Warn("request denied",
			"identity", id.Key(),
			"endpoint", endpoint,
			"limit_type", string(res.LimitTypeHit),
			"retry_after", res.RetryAfter,
		)
	}
}

// Close drains buffered ledger writes and stops the worker.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.recordChan:
			r.write(rec)
		case <-r.done:
			// Drain whatever is buffered before exiting.
			for {
				select {
				case rec := <-r.recordChan:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *ledger.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Append(ctx, rec); err != nil {
		r.logger.Error("ledger append failed",
			"identity", rec.IdentityKey,
			"endpoint", rec.Endpoint,
			"error", err,
		)
	}
}
