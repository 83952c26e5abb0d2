package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/craigrbailey/BillPilot-sub000/internal/cache"
	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/util"
	"github.com/craigrbailey/BillPilot-sub000/internal/websocket"
)

// ObligationService handles bill and income instances
type ObligationService struct {
	repo         domain.ObligationRepository
	categoryRepo domain.CategoryRepository
	cache        *cache.Cache
	publisher    websocket.EventPublisher
	logger       zerolog.Logger
}

// NewObligationService creates a new ObligationService
func NewObligationService(
	repo domain.ObligationRepository,
	categoryRepo domain.CategoryRepository,
	c *cache.Cache,
	publisher websocket.EventPublisher,
	logger zerolog.Logger,
) *ObligationService {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	return &ObligationService{
		repo:         repo,
		categoryRepo: categoryRepo,
		cache:        c,
		publisher:    publisher,
		logger:       logger.With().Str("component", "obligation_service").Logger(),
	}
}

// List returns an owner's obligations of one kind ordered by due date, read through the cache
func (s *ObligationService) List(ctx context.Context, ownerID int32, kind domain.Kind) ([]*domain.Obligation, error) {
	if !kind.IsValid() {
		return nil, domain.ErrInvalidKind
	}
	key := cache.Key{OwnerID: ownerID, Kind: obligationCacheKind(kind)}
	return cache.ReadThrough(s.cache, key, func() ([]*domain.Obligation, error) {
		return s.repo.ListByOwner(ctx, ownerID, kind)
	})
}

// ListBills returns an owner's bills
func (s *ObligationService) ListBills(ctx context.Context, ownerID int32) ([]*domain.Obligation, error) {
	return s.List(ctx, ownerID, domain.KindBill)
}

// ListIncomes returns an owner's income instances
func (s *ObligationService) ListIncomes(ctx context.Context, ownerID int32) ([]*domain.Obligation, error) {
	return s.List(ctx, ownerID, domain.KindIncome)
}

// Get returns one obligation of the given kind
func (s *ObligationService) Get(ctx context.Context, ownerID int32, kind domain.Kind, id int32) (*domain.Obligation, error) {
	o, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if o.Kind != kind {
		return nil, domain.ErrObligationNotFound
	}
	return o, nil
}

// CreateOneTime creates a standalone obligation with no template
func (s *ObligationService) CreateOneTime(ctx context.Context, ownerID int32, input domain.CreateObligationInput) (*domain.Obligation, error) {
	if !input.Kind.IsValid() {
		return nil, domain.ErrInvalidKind
	}
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.DueDate.IsZero() {
		return nil, domain.ErrInvalidDate
	}
	if err := s.checkCategory(ctx, ownerID, input.CategoryID); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, &domain.Obligation{
		OwnerID:    ownerID,
		Kind:       input.Kind,
		Name:       name,
		Amount:     input.Amount.Round(2),
		DueDate:    util.DateOnly(input.DueDate),
		CategoryID: input.CategoryID,
		Notes:      input.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create obligation: %w", err)
	}

	s.cache.InvalidateOwner(ownerID, obligationCacheKind(created.Kind))
	s.publisher.Publish(ownerID, websocket.ObligationCreated(created))
	return created, nil
}

// Update edits an obligation's name, amount, due date, category and notes
func (s *ObligationService) Update(ctx context.Context, ownerID int32, kind domain.Kind, id int32, input domain.UpdateObligationInput) (*domain.Obligation, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.DueDate.IsZero() {
		return nil, domain.ErrInvalidDate
	}
	if _, err := s.Get(ctx, ownerID, kind, id); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, ownerID, input.CategoryID); err != nil {
		return nil, err
	}

	input.Name = name
	input.Amount = input.Amount.Round(2)
	input.DueDate = util.DateOnly(input.DueDate)
	updated, err := s.repo.Update(ctx, ownerID, id, &input)
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateOwner(ownerID, obligationCacheKind(kind))
	s.publisher.Publish(ownerID, websocket.ObligationUpdated(updated))
	return updated, nil
}

// Delete removes one obligation, or its whole lineage group when cascade is set
func (s *ObligationService) Delete(ctx context.Context, ownerID int32, kind domain.Kind, id int32, cascade bool) (int64, error) {
	o, err := s.Get(ctx, ownerID, kind, id)
	if err != nil {
		return 0, err
	}

	deleted, err := s.repo.Delete(ctx, ownerID, id, cascade)
	if err != nil {
		return 0, err
	}

	s.cache.InvalidateOwner(ownerID, obligationCacheKind(kind), cache.KindPayments)
	s.publisher.Publish(ownerID, websocket.ObligationDeleted(map[string]any{
		"id":      id,
		"kind":    kind,
		"cascade": cascade,
		"rootId":  o.LineageRoot(),
		"deleted": deleted,
	}))
	s.logger.Info().
		Int32("owner_id", ownerID).
		Int32("obligation_id", id).
		Bool("cascade", cascade).
		Int64("deleted", deleted).
		Msg("Deleted obligation")
	return deleted, nil
}

func (s *ObligationService) checkCategory(ctx context.Context, ownerID int32, categoryID *int32) error {
	if categoryID == nil {
		return nil
	}
	_, err := s.categoryRepo.GetByID(ctx, ownerID, *categoryID)
	return err
}
