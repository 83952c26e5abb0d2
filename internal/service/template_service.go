package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/craigrbailey/BillPilot-sub000/internal/cache"
	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/recurrence"
	"github.com/craigrbailey/BillPilot-sub000/internal/util"
	"github.com/craigrbailey/BillPilot-sub000/internal/websocket"
)

// generationAttempts bounds retries of a pass that lost a race on the same template
const generationAttempts = 3

// TemplateService manages payees and income sources and generates their occurrences
type TemplateService struct {
	templateRepo   domain.RecurringTemplateRepository
	obligationRepo domain.ObligationRepository
	categoryRepo   domain.CategoryRepository
	cache          *cache.Cache
	publisher      websocket.EventPublisher
	logger         zerolog.Logger
	horizonMonths  int
	locks          *keyedMutex
	now            func() time.Time
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(
	templateRepo domain.RecurringTemplateRepository,
	obligationRepo domain.ObligationRepository,
	categoryRepo domain.CategoryRepository,
	c *cache.Cache,
	publisher websocket.EventPublisher,
	logger zerolog.Logger,
	horizonMonths int,
) *TemplateService {
	if horizonMonths <= 0 {
		horizonMonths = recurrence.DefaultHorizonMonths
	}
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	return &TemplateService{
		templateRepo:   templateRepo,
		obligationRepo: obligationRepo,
		categoryRepo:   categoryRepo,
		cache:          c,
		publisher:      publisher,
		logger:         logger.With().Str("component", "template_service").Logger(),
		horizonMonths:  horizonMonths,
		locks:          newKeyedMutex(),
		now:            time.Now,
	}
}

// CreateTemplate stores a payee or income source and generates its initial batch of occurrences.
// A failed initial batch is logged and left to the next generation pass.
func (s *TemplateService) CreateTemplate(ctx context.Context, ownerID int32, input domain.CreateTemplateInput) (*domain.RecurringTemplate, []*domain.Obligation, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, nil, err
	}
	if !input.Kind.IsValid() {
		return nil, nil, domain.ErrInvalidKind
	}
	if err := validateAmount(input.ExpectedAmount); err != nil {
		return nil, nil, err
	}
	if !input.Frequency.IsValid() {
		return nil, nil, domain.ErrInvalidFrequency
	}
	if input.StartDate.IsZero() {
		return nil, nil, domain.ErrInvalidDate
	}
	if input.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, ownerID, *input.CategoryID); err != nil {
			return nil, nil, err
		}
	}

	created, err := s.templateRepo.Create(ctx, &domain.RecurringTemplate{
		OwnerID:        ownerID,
		Kind:           input.Kind,
		Name:           name,
		ExpectedAmount: input.ExpectedAmount.Round(2),
		Frequency:      input.Frequency,
		StartDate:      util.DateOnly(input.StartDate),
		CategoryID:     input.CategoryID,
		Notes:          input.Notes,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create template: %w", err)
	}
	s.cache.InvalidateOwner(ownerID, cache.KindTemplates)
	s.publisher.Publish(ownerID, websocket.TemplateCreated(created))

	obligations, err := s.generate(ctx, created)
	if err != nil {
		s.logger.Error().Err(err).
			Int32("owner_id", ownerID).
			Int32("template_id", created.ID).
			Msg("Initial generation failed")
		return created, nil, nil
	}
	s.afterGeneration(ownerID, created, obligations)
	return created, obligations, nil
}

// ListTemplates lists an owner's templates of one kind
func (s *TemplateService) ListTemplates(ctx context.Context, ownerID int32, kind domain.Kind) ([]*domain.RecurringTemplate, error) {
	all, err := cache.ReadThrough(s.cache, cache.Key{OwnerID: ownerID, Kind: cache.KindTemplates}, func() ([]*domain.RecurringTemplate, error) {
		return s.templateRepo.ListByOwner(ctx, ownerID, "")
	})
	if err != nil {
		return nil, err
	}
	result := make([]*domain.RecurringTemplate, 0, len(all))
	for _, t := range all {
		if t.Kind == kind {
			result = append(result, t)
		}
	}
	return result, nil
}

// DeleteTemplate removes a template of the given kind together with its obligations and ledger
func (s *TemplateService) DeleteTemplate(ctx context.Context, ownerID int32, kind domain.Kind, id int32) error {
	t, err := s.templateRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if t.Kind != kind {
		return domain.ErrTemplateNotFound
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.templateRepo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.cache.InvalidateOwner(ownerID, cache.KindTemplates, obligationCacheKind(kind), cache.KindPayments)
	s.publisher.Publish(ownerID, websocket.TemplateDeleted(map[string]any{"id": id, "kind": kind}))
	return nil
}

// CheckRecurring runs an idempotent generation pass over every template an owner has.
// Per-template failures are collected in the result and do not stop the pass.
func (s *TemplateService) CheckRecurring(ctx context.Context, ownerID int32) (*domain.GenerationResult, error) {
	templates, err := s.templateRepo.ListByOwner(ctx, ownerID, "")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return s.runPass(ctx, templates), nil
}

// CheckAllRecurring runs the generation pass over every repeating template of every owner
func (s *TemplateService) CheckAllRecurring(ctx context.Context) (*domain.GenerationResult, error) {
	templates, err := s.templateRepo.ListAllRecurring(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	return s.runPass(ctx, templates), nil
}

func (s *TemplateService) runPass(ctx context.Context, templates []*domain.RecurringTemplate) *domain.GenerationResult {
	result := &domain.GenerationResult{}
	for _, t := range templates {
		if ctx.Err() != nil {
			result.Failures = append(result.Failures, domain.TemplateFailure{
				TemplateID: t.ID, OwnerID: t.OwnerID, Error: ctx.Err().Error(),
			})
			continue
		}
		result.TemplatesChecked++

		obligations, err := s.generate(ctx, t)
		if err != nil {
			s.logger.Error().Err(err).
				Int32("owner_id", t.OwnerID).
				Int32("template_id", t.ID).
				Msg("Generation failed")
			result.Failures = append(result.Failures, domain.TemplateFailure{
				TemplateID: t.ID, OwnerID: t.OwnerID, Error: err.Error(),
			})
			continue
		}
		if len(obligations) > 0 {
			s.afterGeneration(t.OwnerID, t, obligations)
			result.Generated += len(obligations)
			result.Obligations = append(result.Obligations, obligations...)
		}
	}
	return result
}

// generate extends a template's lineage up to the horizon. Calls for the same template are
// serialized in-process; the store's row lock and unique constraint cover other processes.
func (s *TemplateService) generate(ctx context.Context, t *domain.RecurringTemplate) ([]*domain.Obligation, error) {
	unlock := s.locks.Lock(t.ID)
	defer unlock()

	horizon := recurrence.HorizonEnd(s.now(), s.horizonMonths)
	var lastErr error
	for attempt := 1; attempt <= generationAttempts; attempt++ {
		obligations, err := s.obligationRepo.ExtendLineage(ctx, t, recurrence.Plan(t, horizon))
		if err == nil {
			return obligations, nil
		}
		if !errors.Is(err, domain.ErrGenerationRace) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn().Err(err).
			Int32("owner_id", t.OwnerID).
			Int32("template_id", t.ID).
			Int("attempt", attempt).
			Msg("Generation raced, retrying")
	}
	return nil, lastErr
}

func (s *TemplateService) afterGeneration(ownerID int32, t *domain.RecurringTemplate, obligations []*domain.Obligation) {
	if len(obligations) == 0 {
		return
	}
	s.cache.InvalidateOwner(ownerID, obligationCacheKind(t.Kind))
	s.publisher.Publish(ownerID, websocket.ObligationsGenerated(map[string]any{
		"templateId": t.ID,
		"count":      len(obligations),
	}))
	s.logger.Info().
		Int32("owner_id", ownerID).
		Int32("template_id", t.ID).
		Int("generated", len(obligations)).
		Msg("Generated occurrences")
}

func obligationCacheKind(kind domain.Kind) cache.ResourceKind {
	if kind == domain.KindIncome {
		return cache.KindIncomes
	}
	return cache.KindBills
}
