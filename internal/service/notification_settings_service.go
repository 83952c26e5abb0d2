package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/craigrbailey/BillPilot-sub000/internal/cache"
	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/notify"
	"github.com/craigrbailey/BillPilot-sub000/internal/websocket"
)

// Dispatcher delivers a message to an owner's providers
type Dispatcher interface {
	Send(ctx context.Context, ownerID int32, msg domain.Message, targets []notify.Target) error
	Test(ctx context.Context, ownerID int32, target notify.Target) error
}

// NotificationSettingsService manages provider and notification type configuration
type NotificationSettingsService struct {
	repo       domain.NotificationSettingsRepository
	ownerRepo  domain.OwnerRepository
	dispatcher Dispatcher
	cache      *cache.Cache
	publisher  websocket.EventPublisher
	logger     zerolog.Logger
}

// NewNotificationSettingsService creates a new NotificationSettingsService
func NewNotificationSettingsService(
	repo domain.NotificationSettingsRepository,
	ownerRepo domain.OwnerRepository,
	dispatcher Dispatcher,
	c *cache.Cache,
	publisher websocket.EventPublisher,
	logger zerolog.Logger,
) *NotificationSettingsService {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	return &NotificationSettingsService{
		repo:       repo,
		ownerRepo:  ownerRepo,
		dispatcher: dispatcher,
		cache:      c,
		publisher:  publisher,
		logger:     logger.With().Str("component", "notification_settings").Logger(),
	}
}

// GetSettings returns every provider the owner configured and all four notification types,
// with unconfigured types reported as disabled defaults
func (s *NotificationSettingsService) GetSettings(ctx context.Context, ownerID int32) (*domain.NotificationSettings, error) {
	return cache.ReadThrough(s.cache, cache.Key{OwnerID: ownerID, Kind: cache.KindSettings}, func() (*domain.NotificationSettings, error) {
		providers, err := s.repo.ListProviders(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		types, err := s.repo.ListTypes(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		configured := make(map[domain.NotificationType]*domain.TypeConfig, len(types))
		for _, t := range types {
			configured[t.Type] = t
		}
		all := make([]*domain.TypeConfig, 0, len(domain.NotificationTypes))
		for _, nt := range domain.NotificationTypes {
			if t, ok := configured[nt]; ok {
				all = append(all, t)
				continue
			}
			all = append(all, &domain.TypeConfig{
				OwnerID:   ownerID,
				Type:      nt,
				Settings:  map[string]any{},
				Providers: []domain.ProviderType{},
			})
		}
		if providers == nil {
			providers = []*domain.ProviderConfig{}
		}
		return &domain.NotificationSettings{Providers: providers, Types: all}, nil
	})
}

// UpdateProvider saves an owner's provider configuration. Required credentials are
// enforced only when the provider is enabled.
func (s *NotificationSettingsService) UpdateProvider(ctx context.Context, ownerID int32, providerType domain.ProviderType, enabled bool, credentials map[string]string) (*domain.ProviderConfig, error) {
	providerType, err := domain.ParseProviderType(string(providerType))
	if err != nil {
		return nil, err
	}

	cleaned := make(map[string]string, len(credentials))
	for k, v := range credentials {
		if k = strings.TrimSpace(k); k != "" {
			cleaned[k] = strings.TrimSpace(v)
		}
	}
	cfg := &domain.ProviderConfig{OwnerID: ownerID, Type: providerType, Enabled: enabled, Credentials: cleaned}
	if enabled {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	saved, err := s.repo.UpsertProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateOwner(ownerID, cache.KindSettings)
	s.publisher.Publish(ownerID, websocket.SettingsUpdated(map[string]any{
		"providerType": saved.Type,
		"enabled":      saved.Enabled,
	}))
	return saved, nil
}

// UpdateType saves an owner's configuration for one notification type
func (s *NotificationSettingsService) UpdateType(ctx context.Context, ownerID int32, notificationType domain.NotificationType, enabled bool, settings map[string]any, providers []domain.ProviderType) (*domain.TypeConfig, error) {
	notificationType, err := domain.ParseNotificationType(string(notificationType))
	if err != nil {
		return nil, err
	}

	normalized := make([]domain.ProviderType, 0, len(providers))
	seen := make(map[domain.ProviderType]bool, len(providers))
	for _, p := range providers {
		pt, err := domain.ParseProviderType(string(p))
		if err != nil {
			return nil, err
		}
		if !seen[pt] {
			seen[pt] = true
			normalized = append(normalized, pt)
		}
	}
	if settings == nil {
		settings = map[string]any{}
	}

	cfg := &domain.TypeConfig{
		OwnerID:   ownerID,
		Type:      notificationType,
		Enabled:   enabled,
		Settings:  settings,
		Providers: normalized,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	saved, err := s.repo.UpsertType(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateOwner(ownerID, cache.KindSettings)
	s.publisher.Publish(ownerID, websocket.SettingsUpdated(saved))
	return saved, nil
}

// TestProvider sends the canned test message through one configured provider
func (s *NotificationSettingsService) TestProvider(ctx context.Context, ownerID int32, providerType domain.ProviderType) error {
	providerType, err := domain.ParseProviderType(string(providerType))
	if err != nil {
		return err
	}
	cfg, err := s.repo.GetProvider(ctx, ownerID, providerType)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	target, err := s.target(ctx, ownerID, cfg)
	if err != nil {
		return err
	}

	if err := s.dispatcher.Test(ctx, ownerID, target); err != nil {
		s.logger.Warn().Err(err).
			Int32("owner_id", ownerID).
			Str("provider", string(providerType)).
			Msg("Test notification failed")
		return err
	}
	return nil
}

// TargetsFor resolves the enabled providers a notification type delivers through.
// An empty provider list on the type means every enabled provider.
func (s *NotificationSettingsService) TargetsFor(ctx context.Context, typeCfg *domain.TypeConfig) ([]notify.Target, error) {
	providers, err := s.repo.ListProviders(ctx, typeCfg.OwnerID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[domain.ProviderType]bool, len(typeCfg.Providers))
	for _, p := range typeCfg.Providers {
		wanted[p] = true
	}

	var targets []notify.Target
	for _, p := range providers {
		if !p.Enabled || (len(wanted) > 0 && !wanted[p.Type]) {
			continue
		}
		target, err := s.target(ctx, typeCfg.OwnerID, p)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// target fills the owner's address as the email recipient when credentials omit one
func (s *NotificationSettingsService) target(ctx context.Context, ownerID int32, cfg *domain.ProviderConfig) (notify.Target, error) {
	target := notify.TargetFromConfig(cfg)
	if cfg.Type != domain.ProviderEmail || strings.TrimSpace(cfg.Credentials["to"]) != "" {
		return target, nil
	}

	owner, err := s.ownerRepo.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrOwnerNotFound) {
			return target, nil
		}
		return target, err
	}
	credentials := make(map[string]string, len(cfg.Credentials)+1)
	for k, v := range cfg.Credentials {
		credentials[k] = v
	}
	credentials["to"] = owner.Email
	target.Credentials = credentials
	return target, nil
}
