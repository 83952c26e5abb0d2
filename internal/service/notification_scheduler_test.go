package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

// blockingExecutor holds each run until release is closed
type blockingExecutor struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu       sync.Mutex
	lastNow  time.Time
	lastRun  string
	deadline bool
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{started: make(chan struct{}), release: make(chan struct{})}
}

func (e *blockingExecutor) Run(ctx context.Context, job domain.NotificationType, now time.Time, runID string) (*BatchReport, error) {
	e.calls.Add(1)
	_, hasDeadline := ctx.Deadline()
	e.mu.Lock()
	e.lastNow, e.lastRun, e.deadline = now, runID, hasDeadline
	e.mu.Unlock()

	e.once.Do(func() { close(e.started) })
	select {
	case <-e.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &BatchReport{Job: job, RunID: runID}, nil
}

func TestNewNotificationScheduler_InvalidSpec(t *testing.T) {
	_, err := NewNotificationScheduler(newBlockingExecutor(), zerolog.Nop(), SchedulerConfig{
		Schedules: map[domain.NotificationType]string{domain.NotificationBillDue: "every tuesday"},
	})
	assert.Error(t, err)
}

func TestRunJob_ExecutesWithRunIDAndLocation(t *testing.T) {
	executor := newBlockingExecutor()
	close(executor.release)
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	s, err := NewNotificationScheduler(executor, zerolog.Nop(), SchedulerConfig{Location: loc, JobTimeout: time.Minute})
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	report, err := s.RunJob(context.Background(), domain.NotificationBillOverdue, now)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationBillOverdue, report.Job)
	assert.NotEmpty(t, report.RunID)

	executor.mu.Lock()
	defer executor.mu.Unlock()
	assert.Equal(t, loc, executor.lastNow.Location())
	assert.True(t, executor.lastNow.Equal(now))
	assert.True(t, executor.deadline)
}

func TestRunJob_RejectsOverlap(t *testing.T) {
	executor := newBlockingExecutor()
	s, err := NewNotificationScheduler(executor, zerolog.Nop(), SchedulerConfig{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunJob(context.Background(), domain.NotificationBillDue, time.Now())
		done <- err
	}()
	<-executor.started

	_, err = s.RunJob(context.Background(), domain.NotificationBillDue, time.Now())
	assert.ErrorIs(t, err, domain.ErrJobAlreadyRunning)

	// other jobs are guarded independently
	other := make(chan error, 1)
	go func() {
		_, err := s.RunJob(context.Background(), domain.NotificationWeeklySummary, time.Now())
		other <- err
	}()

	close(executor.release)
	require.NoError(t, <-done)
	require.NoError(t, <-other)

	_, err = s.RunJob(context.Background(), domain.NotificationBillDue, time.Now())
	assert.NoError(t, err)
}

func TestRunJob_UnknownJob(t *testing.T) {
	s, err := NewNotificationScheduler(newBlockingExecutor(), zerolog.Nop(), SchedulerConfig{})
	require.NoError(t, err)

	_, err = s.RunJob(context.Background(), "HOURLY", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidNotificationType)
}

func TestRunJob_Timeout(t *testing.T) {
	s, err := NewNotificationScheduler(newBlockingExecutor(), zerolog.Nop(), SchedulerConfig{JobTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = s.RunJob(context.Background(), domain.NotificationBillDue, time.Now())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_StartStop(t *testing.T) {
	executor := newBlockingExecutor()
	close(executor.release)
	s, err := NewNotificationScheduler(executor, zerolog.Nop(), SchedulerConfig{
		Schedules: map[domain.NotificationType]string{domain.NotificationBillDue: "@every 1s"},
	})
	require.NoError(t, err)

	assert.False(t, s.IsRunning())
	s.Stop()

	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return executor.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestNextRuns(t *testing.T) {
	s, err := NewNotificationScheduler(newBlockingExecutor(), zerolog.Nop(), SchedulerConfig{Location: time.UTC})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC) }

	next := s.NextRuns()
	require.Len(t, next, 4)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), next[domain.NotificationBillDue])
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), next[domain.NotificationBillOverdue])
	assert.Equal(t, time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC), next[domain.NotificationWeeklySummary])
	assert.Equal(t, time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC), next[domain.NotificationMonthlySummary])
}
