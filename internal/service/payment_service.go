package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/craigrbailey/BillPilot-sub000/internal/cache"
	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/websocket"
)

// PaymentService drives the paid/unpaid state machine of obligations
type PaymentService struct {
	repo      domain.PaymentRepository
	cache     *cache.Cache
	publisher websocket.EventPublisher
	logger    zerolog.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(repo domain.PaymentRepository, c *cache.Cache, publisher websocket.EventPublisher, logger zerolog.Logger) *PaymentService {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	return &PaymentService{
		repo:      repo,
		cache:     c,
		publisher: publisher,
		logger:    logger.With().Str("component", "payment_service").Logger(),
	}
}

// MarkPaid moves an unpaid obligation to paid and records a ledger entry for its amount
func (s *PaymentService) MarkPaid(ctx context.Context, ownerID int32, obligationID int32, paidDate time.Time) (*domain.Obligation, *domain.PaymentLedgerEntry, error) {
	if paidDate.IsZero() {
		return nil, nil, domain.ErrInvalidDate
	}

	o, entry, err := s.repo.MarkPaid(ctx, ownerID, obligationID, paidDate)
	if err != nil {
		return nil, nil, err
	}

	s.invalidate(ownerID, o.Kind)
	s.publisher.Publish(ownerID, websocket.ObligationPaid(o))
	s.logger.Info().
		Int32("owner_id", ownerID).
		Int32("obligation_id", obligationID).
		Str("amount", entry.Amount.StringFixed(2)).
		Time("paid_date", entry.PaidDate).
		Msg("Obligation marked paid")
	return o, entry, nil
}

// MarkUnpaid reverts a paid obligation, removing its most recent ledger entry
func (s *PaymentService) MarkUnpaid(ctx context.Context, ownerID int32, obligationID int32) (*domain.Obligation, error) {
	o, err := s.repo.MarkUnpaid(ctx, ownerID, obligationID)
	if err != nil {
		if errors.Is(err, domain.ErrLedgerMissing) {
			s.logger.Error().Err(err).
				Int32("owner_id", ownerID).
				Int32("obligation_id", obligationID).
				Msg("Paid obligation has no ledger entry")
		}
		return nil, err
	}

	s.invalidate(ownerID, o.Kind)
	s.publisher.Publish(ownerID, websocket.ObligationUnpaid(o))
	s.logger.Info().
		Int32("owner_id", ownerID).
		Int32("obligation_id", obligationID).
		Msg("Obligation marked unpaid")
	return o, nil
}

// ListPayments returns an owner's ledger entries with from <= paid date < to, newest first.
// A zero from or to leaves that side open.
func (s *PaymentService) ListPayments(ctx context.Context, ownerID int32, from, to time.Time) ([]*domain.PaymentLedgerEntry, error) {
	key := cache.Key{OwnerID: ownerID, Kind: cache.KindPayments}
	all, err := cache.ReadThrough(s.cache, key, func() ([]*domain.PaymentLedgerEntry, error) {
		return s.repo.ListByOwner(ctx, ownerID, ledgerOpenStart, ledgerOpenEnd)
	})
	if err != nil {
		return nil, err
	}

	result := make([]*domain.PaymentLedgerEntry, 0, len(all))
	for _, e := range all {
		if !from.IsZero() && e.PaidDate.Before(from) {
			continue
		}
		if !to.IsZero() && !e.PaidDate.Before(to) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// ListForObligation returns the ledger of one obligation, newest first
func (s *PaymentService) ListForObligation(ctx context.Context, ownerID int32, obligationID int32) ([]*domain.PaymentLedgerEntry, error) {
	return s.repo.ListByObligation(ctx, ownerID, obligationID)
}

func (s *PaymentService) invalidate(ownerID int32, kind domain.Kind) {
	s.cache.InvalidateOwner(ownerID, obligationCacheKind(kind), cache.KindPayments)
}

var (
	ledgerOpenStart = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	ledgerOpenEnd   = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
)
