package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

// DefaultSchedules are the wall-clock cron specs for each job
var DefaultSchedules = map[domain.NotificationType]string{
	domain.NotificationBillDue:        "0 9 * * *",
	domain.NotificationBillOverdue:    "0 10 * * *",
	domain.NotificationWeeklySummary:  "0 8 * * 0",
	domain.NotificationMonthlySummary: "0 8 1 * *",
}

// DefaultJobTimeout bounds a single job run
const DefaultJobTimeout = 10 * time.Minute

// JobExecutor runs one notification job
type JobExecutor interface {
	Run(ctx context.Context, job domain.NotificationType, now time.Time, runID string) (*BatchReport, error)
}

// SchedulerConfig holds configuration for the notification scheduler
type SchedulerConfig struct {
	Location   *time.Location
	JobTimeout time.Duration
	Schedules  map[domain.NotificationType]string
}

// NotificationScheduler fires the notification jobs on fixed schedules. A job never overlaps
// itself: a firing or manual run while the previous run is active fails with ErrJobAlreadyRunning.
type NotificationScheduler struct {
	executor   JobExecutor
	cron       *cron.Cron
	location   *time.Location
	jobTimeout time.Duration
	logger     zerolog.Logger
	schedules  map[domain.NotificationType]string
	guards     map[domain.NotificationType]*sync.Mutex
	now        func() time.Time

	mu      sync.Mutex
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewNotificationScheduler registers every job with cron but does not start it
func NewNotificationScheduler(executor JobExecutor, logger zerolog.Logger, config SchedulerConfig) (*NotificationScheduler, error) {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultJobTimeout
	}
	if config.Schedules == nil {
		config.Schedules = DefaultSchedules
	}

	s := &NotificationScheduler{
		executor:   executor,
		location:   config.Location,
		jobTimeout: config.JobTimeout,
		logger:     logger.With().Str("component", "notification_scheduler").Logger(),
		schedules:  config.Schedules,
		guards:     make(map[domain.NotificationType]*sync.Mutex, len(domain.NotificationTypes)),
		now:        time.Now,
		baseCtx:    context.Background(),
	}
	s.cron = cron.New(
		cron.WithLocation(config.Location),
		cron.WithChain(cron.Recover(cronLogger{logger: s.logger})),
	)

	for _, job := range domain.NotificationTypes {
		s.guards[job] = &sync.Mutex{}
		spec, ok := config.Schedules[job]
		if !ok {
			continue
		}
		if _, err := s.cron.AddFunc(spec, func() { s.fire(job) }); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", job, spec, err)
		}
	}
	return s, nil
}

// Start begins firing jobs. Runs started by the scheduler are cancelled when ctx ends or Stop is called.
func (s *NotificationScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	s.logger.Info().
		Str("timezone", s.location.String()).
		Int("jobs", len(s.cron.Entries())).
		Msg("Starting notification scheduler")
}

// Stop halts firing, cancels in-flight runs and waits for them to return
func (s *NotificationScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping notification scheduler")
	cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Notification scheduler stopped")
}

// IsRunning returns whether the scheduler is firing jobs
func (s *NotificationScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunJob executes one job immediately under the same guard the schedule uses
func (s *NotificationScheduler) RunJob(ctx context.Context, job domain.NotificationType, now time.Time) (*BatchReport, error) {
	guard, ok := s.guards[job]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidNotificationType, job)
	}
	if !guard.TryLock() {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobAlreadyRunning, job)
	}
	defer guard.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	runID := uuid.New().String()
	s.logger.Info().Str("job", string(job)).Str("run_id", runID).Msg("Notification job started")
	return s.executor.Run(ctx, job, now.In(s.location), runID)
}

// NextRuns returns the next firing time of each scheduled job
func (s *NotificationScheduler) NextRuns() map[domain.NotificationType]time.Time {
	next := make(map[domain.NotificationType]time.Time)
	now := s.now().In(s.location)
	for job, spec := range s.schedules {
		schedule, err := cron.ParseStandard(spec)
		if err != nil {
			continue
		}
		next[job] = schedule.Next(now)
	}
	return next
}

func (s *NotificationScheduler) fire(job domain.NotificationType) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if _, err := s.RunJob(ctx, job, s.now()); err != nil {
		s.logger.Error().Err(err).Str("job", string(job)).Msg("Scheduled notification job failed")
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
