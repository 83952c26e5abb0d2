package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

// RecurringChecker runs a generation pass over every repeating template
type RecurringChecker interface {
	CheckAllRecurring(ctx context.Context) (*domain.GenerationResult, error)
}

// HorizonWorker is a background worker that keeps every template's occurrences
// generated up to the horizon
type HorizonWorker struct {
	checker  RecurringChecker
	logger   zerolog.Logger
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// HorizonWorkerConfig holds configuration for the horizon worker
type HorizonWorkerConfig struct {
	Interval time.Duration // How often to run the generation pass
}

// DefaultHorizonWorkerConfig returns sensible defaults
func DefaultHorizonWorkerConfig() HorizonWorkerConfig {
	return HorizonWorkerConfig{Interval: 1 * time.Hour}
}

// NewHorizonWorker creates a new horizon worker
func NewHorizonWorker(checker RecurringChecker, logger zerolog.Logger, config HorizonWorkerConfig) *HorizonWorker {
	if config.Interval <= 0 {
		config.Interval = 1 * time.Hour
	}
	return &HorizonWorker{
		checker:  checker,
		logger:   logger.With().Str("component", "horizon_worker").Logger(),
		interval: config.Interval,
	}
}

// Start begins the background generation loop. A stopped worker can be started again.
func (w *HorizonWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	w.stopCh, w.doneCh = stopCh, doneCh
	w.mu.Unlock()

	w.logger.Info().Dur("interval", w.interval).Msg("Starting horizon worker")
	go w.run(ctx, stopCh, doneCh)
}

// Stop gracefully stops the worker and waits for the current pass to end
func (w *HorizonWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping horizon worker")
	close(stopCh)
	<-doneCh
	w.logger.Info().Msg("Horizon worker stopped")
}

func (w *HorizonWorker) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	defer func() {
		w.mu.Lock()
		// a later Start owns the flag once it has swapped the channels
		if w.doneCh == doneCh {
			w.running = false
		}
		w.mu.Unlock()
	}()

	// cancelled by either ctx or Stop
	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-passCtx.Done():
		}
	}()

	w.sync(passCtx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-passCtx.Done():
			return
		case <-ticker.C:
			w.sync(passCtx)
		}
	}
}

// sync runs one pass and logs its batch report
func (w *HorizonWorker) sync(ctx context.Context) {
	start := time.Now()
	result, err := w.checker.CheckAllRecurring(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Horizon sync failed")
		return
	}

	for _, f := range result.Failures {
		w.logger.Warn().
			Int32("owner_id", f.OwnerID).
			Int32("template_id", f.TemplateID).
			Str("error", f.Error).
			Msg("Template generation failed during horizon sync")
	}
	w.logger.Info().
		Int("templates", result.TemplatesChecked).
		Int("generated", result.Generated).
		Int("failures", len(result.Failures)).
		Dur("elapsed", time.Since(start)).
		Msg("Completed horizon sync")
}

// IsRunning returns whether the worker is currently running
func (w *HorizonWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
