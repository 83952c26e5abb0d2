package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

const (
	DefaultProviderTimeout = 10 * time.Second
	DefaultRatePerSecond   = 5
	DefaultBurst           = 10
)

// TestMessage is sent by the settings test endpoint
var TestMessage = domain.Message{
	Subject: "BillPilot test notification",
	Body:    "This is a test notification from BillPilot. If you can read this, the provider is configured correctly.",
}

// Target is one provider configuration to deliver through
type Target struct {
	Type        domain.ProviderType
	Credentials map[string]string
}

// TargetFromConfig converts a stored provider configuration
func TargetFromConfig(cfg *domain.ProviderConfig) Target {
	return Target{Type: cfg.Type, Credentials: cfg.Credentials}
}

// DeliveryError aggregates the providers that failed during one dispatch
type DeliveryError struct {
	OwnerID   int32
	Attempted int
	Failures  map[domain.ProviderType]error
}

func (e *DeliveryError) Error() string {
	types := e.Failed()
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s: %v", t, e.Failures[t]))
	}
	return fmt.Sprintf("delivery failed for %d of %d providers: %s", len(types), e.Attempted, strings.Join(parts, "; "))
}

// Failed returns the failed provider types in stable order
func (e *DeliveryError) Failed() []domain.ProviderType {
	types := make([]domain.ProviderType, 0, len(e.Failures))
	for t := range e.Failures {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// DispatcherConfig tunes per-provider deadlines and throughput
type DispatcherConfig struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Dispatcher fans a message out to providers concurrently.
// A slow or failing provider never blocks or fails the others.
type Dispatcher struct {
	providers map[domain.ProviderType]Provider
	limiters  map[domain.ProviderType]*rate.Limiter
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewDispatcher(logger zerolog.Logger, cfg DispatcherConfig, providers ...Provider) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProviderTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	d := &Dispatcher{
		providers: make(map[domain.ProviderType]Provider, len(providers)),
		limiters:  make(map[domain.ProviderType]*rate.Limiter, len(providers)),
		timeout:   cfg.Timeout,
		logger:    logger.With().Str("component", "notify_dispatcher").Logger(),
	}
	for _, p := range providers {
		d.providers[p.Type()] = p
		d.limiters[p.Type()] = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return d
}

// Supports reports whether a provider is registered for t
func (d *Dispatcher) Supports(t domain.ProviderType) bool {
	_, ok := d.providers[t]
	return ok
}

// Send delivers msg through every target. It returns nil when all succeed,
// otherwise a *DeliveryError naming each failed provider.
func (d *Dispatcher) Send(ctx context.Context, ownerID int32, msg domain.Message, targets []Target) error {
	if len(targets) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures = make(map[domain.ProviderType]error)
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target Target) {
			defer wg.Done()
			start := time.Now()
			err := d.deliver(ctx, target, msg)
			event := d.logger.Info()
			if err != nil {
				event = d.logger.Warn().Err(err)
				mu.Lock()
				failures[target.Type] = err
				mu.Unlock()
			}
			event.
				Int32("owner_id", ownerID).
				Str("provider", string(target.Type)).
				Dur("duration", time.Since(start)).
				Msg("notification delivery")
		}(target)
	}
	wg.Wait()

	if len(failures) == 0 {
		return nil
	}
	return &DeliveryError{OwnerID: ownerID, Attempted: len(targets), Failures: failures}
}

// Test sends TestMessage through a single target
func (d *Dispatcher) Test(ctx context.Context, ownerID int32, target Target) error {
	return d.Send(ctx, ownerID, TestMessage, []Target{target})
}

func (d *Dispatcher) deliver(ctx context.Context, target Target, msg domain.Message) error {
	provider, ok := d.providers[target.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, target.Type)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if limiter := d.limiters[target.Type]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("provider panic: %v", r)
			}
		}()
		done <- provider.Send(ctx, target.Credentials, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("provider timed out after %s: %w", d.timeout, ctx.Err())
	}
}
