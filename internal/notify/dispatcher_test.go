package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

type fakeProvider struct {
	kind  domain.ProviderType
	err   error
	delay time.Duration
	calls atomic.Int32
	last  atomic.Value
}

func (f *fakeProvider) Type() domain.ProviderType { return f.kind }

func (f *fakeProvider) Send(ctx context.Context, _ map[string]string, msg domain.Message) error {
	f.calls.Add(1)
	f.last.Store(msg)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

type hangingProvider struct {
	kind domain.ProviderType
}

func (h *hangingProvider) Type() domain.ProviderType { return h.kind }

// Send ignores ctx entirely
func (h *hangingProvider) Send(context.Context, map[string]string, domain.Message) error {
	time.Sleep(time.Hour)
	return nil
}

type panickingProvider struct{}

func (panickingProvider) Type() domain.ProviderType { return domain.ProviderDiscord }

func (panickingProvider) Send(context.Context, map[string]string, domain.Message) error {
	panic("boom")
}

func targets(types ...domain.ProviderType) []Target {
	out := make([]Target, 0, len(types))
	for _, t := range types {
		out = append(out, Target{Type: t, Credentials: map[string]string{}})
	}
	return out
}

func TestDispatcher_AllSucceed(t *testing.T) {
	email := &fakeProvider{kind: domain.ProviderEmail}
	slack := &fakeProvider{kind: domain.ProviderSlack}
	d := NewDispatcher(zerolog.Nop(), DispatcherConfig{}, email, slack)

	msg := domain.Message{Subject: "s", Body: "b"}
	err := d.Send(context.Background(), 1, msg, targets(domain.ProviderEmail, domain.ProviderSlack))

	require.NoError(t, err)
	assert.Equal(t, int32(1), email.calls.Load())
	assert.Equal(t, int32(1), slack.calls.Load())
	assert.Equal(t, msg, slack.last.Load())
}

func TestDispatcher_OneFailureDoesNotBlockOthers(t *testing.T) {
	email := &fakeProvider{kind: domain.ProviderEmail}
	pushover := &fakeProvider{kind: domain.ProviderPushover}
	slack := &fakeProvider{kind: domain.ProviderSlack, err: errors.New("webhook rejected")}
	d := NewDispatcher(zerolog.Nop(), DispatcherConfig{}, email, pushover, slack)

	err := d.Send(context.Background(), 7, domain.Message{Subject: "s"},
		targets(domain.ProviderEmail, domain.ProviderPushover, domain.ProviderSlack))

	require.Error(t, err)
	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, int32(7), deliveryErr.OwnerID)
	assert.Equal(t, 3, deliveryErr.Attempted)
	assert.Equal(t, []domain.ProviderType{domain.ProviderSlack}, deliveryErr.Failed())
	assert.Contains(t, err.Error(), "1 of 3")
	assert.Contains(t, err.Error(), "webhook rejected")

	assert.Equal(t, int32(1), email.calls.Load())
	assert.Equal(t, int32(1), pushover.calls.Load())
}

func TestDispatcher_HungProviderTimesOut(t *testing.T) {
	email := &fakeProvider{kind: domain.ProviderEmail}
	d := NewDispatcher(zerolog.Nop(), DispatcherConfig{Timeout: 50 * time.Millisecond},
		email, &hangingProvider{kind: domain.ProviderSlack})

	start := time.Now()
	err := d.Send(context.Background(), 1, domain.Message{}, targets(domain.ProviderEmail, domain.ProviderSlack))
	elapsed := time.Since(start)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, []domain.ProviderType{domain.ProviderSlack}, deliveryErr.Failed())
	assert.ErrorIs(t, deliveryErr.Failures[domain.ProviderSlack], context.DeadlineExceeded)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, int32(1), email.calls.Load())
}

func TestDispatcher_UnknownProvider(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), DispatcherConfig{}, &fakeProvider{kind: domain.ProviderEmail})

	err := d.Send(context.Background(), 1, domain.Message{}, targets(domain.ProviderDiscord))

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.ErrorIs(t, deliveryErr.Failures[domain.ProviderDiscord], ErrUnknownProvider)
	assert.False(t, d.Supports(domain.ProviderDiscord))
	assert.True(t, d.Supports(domain.ProviderEmail))
}

func TestDispatcher_PanicIsRecorded(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), DispatcherConfig{}, panickingProvider{})

	err := d.Send(context.Background(), 1, domain.Message{}, targets(domain.ProviderDiscord))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider panic")
}

func TestDispatcher_NoTargets(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), DispatcherConfig{})
	assert.NoError(t, d.Send(context.Background(), 1, domain.Message{}, nil))
}

func TestDispatcher_Test(t *testing.T) {
	slack := &fakeProvider{kind: domain.ProviderSlack}
	d := NewDispatcher(zerolog.Nop(), DispatcherConfig{}, slack)

	err := d.Test(context.Background(), 1, Target{Type: domain.ProviderSlack})

	require.NoError(t, err)
	assert.Equal(t, TestMessage, slack.last.Load())
}

func TestDeliveryError_StableOrder(t *testing.T) {
	err := &DeliveryError{
		Attempted: 3,
		Failures: map[domain.ProviderType]error{
			domain.ProviderSlack:    errors.New("a"),
			domain.ProviderDiscord:  errors.New("b"),
			domain.ProviderPushover: errors.New("c"),
		},
	}

	assert.Equal(t, []domain.ProviderType{domain.ProviderDiscord, domain.ProviderPushover, domain.ProviderSlack}, err.Failed())
	assert.Equal(t, "delivery failed for 3 of 3 providers: DISCORD: b; PUSHOVER: c; SLACK: a", err.Error())
}
