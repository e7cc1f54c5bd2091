package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	syncapp "github.com/sellersync/backend/internal/application/sync"
	"github.com/sellersync/backend/internal/infrastructure/telemetry"
)

// SyncRunner executes one reconciliation run. Satisfied by the sync service.
type SyncRunner interface {
	Sync(ctx context.Context, opts syncapp.Options) (*syncapp.SyncOutcome, error)
}

// Config holds configuration for the periodic sync scheduler
type Config struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// Interval is the time between scheduled runs
	Interval time.Duration
	// RunTimeout is the maximum time one run can take
	RunTimeout time.Duration
	// Options are the run options used for scheduled runs
	Options syncapp.Options
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Interval:   15 * time.Minute,
		RunTimeout: 10 * time.Minute,
		Options: syncapp.Options{
			Dedupe:     true,
			EnrichSKUs: true,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.RunTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncScheduler runs the reconciliation pipeline on a fixed interval. Runs
// are strictly serialized: the engine holds per-run credential state, so a
// tick that fires while a run is still executing is skipped, not queued.
type SyncScheduler struct {
	config  Config
	runner  SyncRunner
	history *syncapp.RunHistory
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  bool
}

// NewSyncScheduler creates a new periodic sync scheduler
func NewSyncScheduler(config Config, runner SyncRunner, history *syncapp.RunHistory, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SyncScheduler{
		config:  config,
		runner:  runner,
		history: history,
		logger:  logger,
	}, nil
}

// Start starts the scheduler loop
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("run_timeout", s.config.RunTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight run
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerNow runs one reconciliation immediately, outside the interval.
// Returns ErrRunInProgress if a run is already executing.
func (s *SyncScheduler) TriggerNow(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	return s.runOnce(ctx)
}

func (s *SyncScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sync scheduler loop stopping")
			return
		case <-ticker.C:
			if err := s.runOnce(ctx); err != nil {
				s.logger.Debug("Scheduled run skipped", zap.Error(err))
			}
		}
	}
}

// runOnce executes a single run if none is in flight
func (s *SyncScheduler) runOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	runCtx, span := telemetry.StartSpan(runCtx, "scheduler.sync",
		telemetry.WithAttribute(telemetry.SpanAttrTrigger, syncapp.TriggerScheduler),
	)
	defer span.End()

	s.logger.Info("Scheduled sync run starting",
		zap.Bool("dedupe", s.config.Options.Dedupe),
		zap.Bool("enrich_skus", s.config.Options.EnrichSKUs),
	)

	outcome, err := s.runner.Sync(runCtx, s.config.Options)
	if s.history != nil {
		s.history.Add(syncapp.NewRunRecord(syncapp.TriggerScheduler, s.config.Options, outcome, err))
	}

	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if outcome != nil {
			fields = append(fields,
				zap.Bool("partial", outcome.Partial),
				zap.Int("orders_processed", outcome.OrdersProcessed),
				zap.Int("lines_inserted", outcome.LinesInserted),
			)
		}
		s.logger.Error("Scheduled sync run failed", fields...)
		return nil
	}

	s.logger.Info("Scheduled sync run completed",
		zap.Int("orders_processed", outcome.OrdersProcessed),
		zap.Int("lines_inserted", outcome.LinesInserted),
		zap.Int("duplicates_skipped", outcome.DuplicatesSkipped),
		zap.Int("unresolved_skus", outcome.UnresolvedSKUs),
		zap.Int("stock_decrements", outcome.StockDecrements),
	)
	return nil
}
