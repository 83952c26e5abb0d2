package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

const (
	providerColumns = `id, owner_id, provider_type, enabled, credentials, updated_at`
	typeColumns     = `id, owner_id, notification_type, enabled, settings, providers, updated_at`
)

// NotificationSettingsRepository implements domain.NotificationSettingsRepository using PostgreSQL
type NotificationSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationSettingsRepository creates a new NotificationSettingsRepository
func NewNotificationSettingsRepository(pool *pgxpool.Pool) *NotificationSettingsRepository {
	return &NotificationSettingsRepository{pool: pool}
}

// ListProviders lists every provider an owner configured
func (r *NotificationSettingsRepository) ListProviders(ctx context.Context, ownerID int32) ([]*domain.ProviderConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+providerColumns+` FROM notification_providers
		WHERE owner_id = $1 ORDER BY provider_type`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.ProviderConfig
	for rows.Next() {
		p, err := scanProviderConfig(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// GetProvider returns ErrProviderNotConfigured when the owner has no row for providerType
func (r *NotificationSettingsRepository) GetProvider(ctx context.Context, ownerID int32, providerType domain.ProviderType) (*domain.ProviderConfig, error) {
	return scanProviderConfig(r.pool.QueryRow(ctx, `
		SELECT `+providerColumns+` FROM notification_providers
		WHERE owner_id = $1 AND provider_type = $2`, ownerID, string(providerType)))
}

// UpsertProvider creates or replaces an owner's provider configuration
func (r *NotificationSettingsRepository) UpsertProvider(ctx context.Context, cfg *domain.ProviderConfig) (*domain.ProviderConfig, error) {
	credentials := cfg.Credentials
	if credentials == nil {
		credentials = map[string]string{}
	}
	return scanProviderConfig(r.pool.QueryRow(ctx, `
		INSERT INTO notification_providers (owner_id, provider_type, enabled, credentials)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, provider_type) DO UPDATE
		SET enabled = EXCLUDED.enabled, credentials = EXCLUDED.credentials, updated_at = NOW()
		RETURNING `+providerColumns,
		cfg.OwnerID, string(cfg.Type), cfg.Enabled, credentials))
}

// ListTypes lists every notification type an owner configured
func (r *NotificationSettingsRepository) ListTypes(ctx context.Context, ownerID int32) ([]*domain.TypeConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+typeColumns+` FROM notification_types
		WHERE owner_id = $1 ORDER BY notification_type`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectTypeConfigs(rows)
}

// UpsertType creates or replaces an owner's notification type configuration
func (r *NotificationSettingsRepository) UpsertType(ctx context.Context, cfg *domain.TypeConfig) (*domain.TypeConfig, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	providers := make([]string, len(cfg.Providers))
	for i, p := range cfg.Providers {
		providers[i] = string(p)
	}

	rows, err := r.pool.Query(ctx, `
		INSERT INTO notification_types (owner_id, notification_type, enabled, settings, providers)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, notification_type) DO UPDATE
		SET enabled = EXCLUDED.enabled, settings = EXCLUDED.settings,
		    providers = EXCLUDED.providers, updated_at = NOW()
		RETURNING `+typeColumns,
		cfg.OwnerID, string(cfg.Type), cfg.Enabled, settings, providers)
	if err != nil {
		return nil, err
	}
	configs, err := collectTypeConfigs(rows)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, domain.ErrNotFound
	}
	return configs[0], nil
}

// ListEnabledByType lists every owner's enabled configuration for one notification type
func (r *NotificationSettingsRepository) ListEnabledByType(ctx context.Context, notificationType domain.NotificationType) ([]*domain.TypeConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+typeColumns+` FROM notification_types
		WHERE notification_type = $1 AND enabled
		ORDER BY owner_id`, string(notificationType))
	if err != nil {
		return nil, err
	}
	return collectTypeConfigs(rows)
}

func scanProviderConfig(row pgx.Row) (*domain.ProviderConfig, error) {
	var (
		p            domain.ProviderConfig
		providerType string
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &providerType, &p.Enabled, &p.Credentials, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProviderNotConfigured
		}
		return nil, err
	}
	p.Type = domain.ProviderType(providerType)
	if p.Credentials == nil {
		p.Credentials = map[string]string{}
	}
	return &p, nil
}

func collectTypeConfigs(rows pgx.Rows) ([]*domain.TypeConfig, error) {
	defer rows.Close()
	var result []*domain.TypeConfig
	for rows.Next() {
		var (
			c                domain.TypeConfig
			notificationType string
			providers        []string
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &notificationType, &c.Enabled, &c.Settings, &providers, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Type = domain.NotificationType(notificationType)
		c.Providers = make([]domain.ProviderType, len(providers))
		for i, p := range providers {
			c.Providers[i] = domain.ProviderType(p)
		}
		if c.Settings == nil {
			c.Settings = map[string]any{}
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}
