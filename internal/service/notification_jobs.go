package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/notify"
	"github.com/craigrbailey/BillPilot-sub000/internal/util"
)

// DefaultNotifyWorkers bounds concurrent per-owner work inside one job run
const DefaultNotifyWorkers = 4

// OwnerStatus is the outcome of one owner within a job run
type OwnerStatus string

const (
	OwnerSent    OwnerStatus = "sent"
	OwnerSkipped OwnerStatus = "skipped"
	OwnerFailed  OwnerStatus = "failed"
)

// OwnerResult records what a job did for one owner
type OwnerResult struct {
	OwnerID         int32                 `json:"ownerId"`
	Status          OwnerStatus           `json:"status"`
	Items           int                   `json:"items"`
	Reason          string                `json:"reason,omitempty"`
	FailedProviders []domain.ProviderType `json:"failedProviders,omitempty"`
}

// BatchReport summarizes one job run across owners
type BatchReport struct {
	Job        domain.NotificationType `json:"job"`
	RunID      string                  `json:"runId"`
	StartedAt  time.Time               `json:"startedAt"`
	FinishedAt time.Time               `json:"finishedAt"`
	Owners     []OwnerResult           `json:"owners"`
	Sent       int                     `json:"sent"`
	Skipped    int                     `json:"skipped"`
	Failed     int                     `json:"failed"`
}

func (r *BatchReport) tally() {
	r.Sent, r.Skipped, r.Failed = 0, 0, 0
	for _, o := range r.Owners {
		switch o.Status {
		case OwnerSent:
			r.Sent++
		case OwnerSkipped:
			r.Skipped++
		case OwnerFailed:
			r.Failed++
		}
	}
}

// JobRunner executes the four scheduled notification jobs
type JobRunner struct {
	settingsRepo domain.NotificationSettingsRepository
	categoryRepo domain.CategoryRepository
	obligations  *ObligationService
	settings     *NotificationSettingsService
	dispatcher   Dispatcher
	workers      int
	logger       zerolog.Logger
}

// NewJobRunner creates a new JobRunner
func NewJobRunner(
	settingsRepo domain.NotificationSettingsRepository,
	categoryRepo domain.CategoryRepository,
	obligations *ObligationService,
	settings *NotificationSettingsService,
	dispatcher Dispatcher,
	workers int,
	logger zerolog.Logger,
) *JobRunner {
	if workers <= 0 {
		workers = DefaultNotifyWorkers
	}
	return &JobRunner{
		settingsRepo: settingsRepo,
		categoryRepo: categoryRepo,
		obligations:  obligations,
		settings:     settings,
		dispatcher:   dispatcher,
		workers:      workers,
		logger:       logger.With().Str("component", "notification_jobs").Logger(),
	}
}

// Run executes one job for every owner with the type enabled. Per-owner failures are
// recorded in the report and never stop the run; only failing to list owners returns an error.
func (r *JobRunner) Run(ctx context.Context, job domain.NotificationType, now time.Time, runID string) (*BatchReport, error) {
	report := &BatchReport{Job: job, RunID: runID, StartedAt: time.Now()}
	logger := r.logger.With().Str("job", string(job)).Str("run_id", runID).Logger()

	configs, err := r.settingsRepo.ListEnabledByType(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("list enabled %s configs: %w", job, err)
	}

	report.Owners = make([]OwnerResult, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			report.Owners[i] = r.runOwner(gctx, job, cfg, now, logger)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now()
	report.tally()
	logger.Info().
		Int("owners", len(configs)).
		Int("sent", report.Sent).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Notification job finished")
	return report, nil
}

func (r *JobRunner) runOwner(ctx context.Context, job domain.NotificationType, cfg *domain.TypeConfig, now time.Time, logger zerolog.Logger) (result OwnerResult) {
	result = OwnerResult{OwnerID: cfg.OwnerID}
	defer func() {
		if rec := recover(); rec != nil {
			result.Status = OwnerFailed
			result.Reason = fmt.Sprintf("panic: %v", rec)
		}
		event := logger.Debug()
		if result.Status == OwnerFailed {
			event = logger.Warn()
		}
		event.Int32("owner_id", cfg.OwnerID).
			Str("status", string(result.Status)).
			Str("reason", result.Reason).
			Msg("Owner processed")
	}()

	if err := ctx.Err(); err != nil {
		return failed(result, err)
	}

	msg, items, err := r.buildMessage(ctx, job, cfg, now)
	if err != nil {
		return failed(result, err)
	}
	result.Items = items
	if msg == nil {
		result.Status = OwnerSkipped
		result.Reason = "nothing to report"
		return result
	}

	targets, err := r.settings.TargetsFor(ctx, cfg)
	if err != nil {
		return failed(result, err)
	}
	if len(targets) == 0 {
		result.Status = OwnerSkipped
		result.Reason = "no enabled providers"
		return result
	}

	if err := r.dispatcher.Send(ctx, cfg.OwnerID, *msg, targets); err != nil {
		var deliveryErr *notify.DeliveryError
		if errors.As(err, &deliveryErr) {
			result.FailedProviders = deliveryErr.Failed()
		}
		return failed(result, err)
	}
	result.Status = OwnerSent
	return result
}

// buildMessage returns nil when the owner has nothing to be told about
func (r *JobRunner) buildMessage(ctx context.Context, job domain.NotificationType, cfg *domain.TypeConfig, now time.Time) (*domain.Message, int, error) {
	today := util.DateOnly(now)
	bills, err := r.obligations.ListBills(ctx, cfg.OwnerID)
	if err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}

	switch job {
	case domain.NotificationBillDue:
		days, err := cfg.DaysBefore()
		if err != nil {
			return nil, 0, err
		}
		target := today.AddDate(0, 0, days)
		var due []*domain.Obligation
		for _, o := range bills {
			if !o.IsPaid && o.DueDate.Equal(target) {
				due = append(due, o)
			}
		}
		if len(due) == 0 {
			return nil, 0, nil
		}
		msg := DueDigest(due, target)
		return &msg, len(due), nil

	case domain.NotificationBillOverdue:
		var overdue []*domain.Obligation
		for _, o := range bills {
			if !o.IsPaid && o.DueDate.Before(today) {
				overdue = append(overdue, o)
			}
		}
		if len(overdue) == 0 {
			return nil, 0, nil
		}
		msg := OverdueDigest(overdue, today)
		return &msg, len(overdue), nil

	case domain.NotificationWeeklySummary:
		weekStart := util.StartOfWeek(today)
		msg := WeeklySummary(bills, weekStart)
		return &msg, len(filterDue(bills, weekStart, weekStart.AddDate(0, 0, 14))), nil

	case domain.NotificationMonthlySummary:
		categories, err := r.categoryRepo.ListByOwner(ctx, cfg.OwnerID)
		if err != nil {
			return nil, 0, fmt.Errorf("list categories: %w", err)
		}
		names := make(map[int32]string, len(categories))
		for _, c := range categories {
			names[c.ID] = c.Name
		}
		monthStart := util.StartOfMonth(today)
		msg := MonthlySummary(bills, names, monthStart, today)
		return &msg, len(filterDue(bills, monthStart.AddDate(0, -1, 0), monthStart.AddDate(0, 1, 0))), nil
	}
	return nil, 0, fmt.Errorf("%w: %s", domain.ErrInvalidNotificationType, job)
}

func failed(result OwnerResult, err error) OwnerResult {
	result.Status = OwnerFailed
	result.Reason = err.Error()
	return result
}
