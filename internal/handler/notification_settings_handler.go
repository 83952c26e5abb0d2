package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/middleware"
	"github.com/craigrbailey/BillPilot-sub000/internal/service"
)

// NotificationSettingsHandler handles notification provider and type configuration
type NotificationSettingsHandler struct {
	service *service.NotificationSettingsService
}

// NewNotificationSettingsHandler creates a new NotificationSettingsHandler
func NewNotificationSettingsHandler(service *service.NotificationSettingsService) *NotificationSettingsHandler {
	return &NotificationSettingsHandler{service: service}
}

// UpdateProviderRequest represents the PUT provider/:type body
type UpdateProviderRequest struct {
	Enabled     bool              `json:"enabled"`
	Credentials map[string]string `json:"credentials"`
}

// UpdateTypeRequest represents the PUT type/:type body
type UpdateTypeRequest struct {
	Enabled   bool           `json:"enabled"`
	Settings  map[string]any `json:"settings"`
	Providers []string       `json:"providers"`
}

// ProviderResponse represents a provider config in API responses
type ProviderResponse struct {
	ProviderType string            `json:"providerType"`
	Enabled      bool              `json:"enabled"`
	Credentials  map[string]string `json:"credentials"`
	UpdatedAt    *string           `json:"updatedAt,omitempty"`
}

// TypeResponse represents a notification type config in API responses
type TypeResponse struct {
	Type      string         `json:"type"`
	Enabled   bool           `json:"enabled"`
	Settings  map[string]any `json:"settings"`
	Providers []string       `json:"providers"`
	UpdatedAt *string        `json:"updatedAt,omitempty"`
}

// NotificationSettingsResponse is the GET /settings/notifications body
type NotificationSettingsResponse struct {
	Providers []ProviderResponse `json:"providers"`
	Types     []TypeResponse     `json:"types"`
}

// TestResponse reports a successful test delivery
type TestResponse struct {
	ProviderType string `json:"providerType"`
	Delivered    bool   `json:"delivered"`
}

// GetSettings handles GET /api/v1/settings/notifications
func (h *NotificationSettingsHandler) GetSettings(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}

	settings, err := h.service.GetSettings(c.Request().Context(), ownerID)
	if err != nil {
		return handleServiceError(c, err, ownerID, "get notification settings")
	}

	response := NotificationSettingsResponse{
		Providers: make([]ProviderResponse, len(settings.Providers)),
		Types:     make([]TypeResponse, len(settings.Types)),
	}
	for i, p := range settings.Providers {
		response.Providers[i] = toProviderResponse(p)
	}
	for i, t := range settings.Types {
		response.Types[i] = toTypeResponse(t)
	}
	return c.JSON(http.StatusOK, response)
}

// UpdateProvider handles PUT /api/v1/settings/notifications/provider/:type
func (h *NotificationSettingsHandler) UpdateProvider(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}
	providerType, err := domain.ParseProviderType(c.Param("type"))
	if err != nil {
		return NewValidationError(c, err.Error(), nil)
	}

	var req UpdateProviderRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	cfg, err := h.service.UpdateProvider(c.Request().Context(), ownerID, providerType, req.Enabled, req.Credentials)
	if err != nil {
		return handleServiceError(c, err, ownerID, "update notification provider")
	}

	log.Info().
		Int32("owner_id", ownerID).
		Str("provider", string(providerType)).
		Bool("enabled", cfg.Enabled).
		Msg("Notification provider updated")

	return c.JSON(http.StatusOK, toProviderResponse(cfg))
}

// UpdateType handles PUT /api/v1/settings/notifications/type/:type
func (h *NotificationSettingsHandler) UpdateType(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}
	notificationType, err := domain.ParseNotificationType(c.Param("type"))
	if err != nil {
		return NewValidationError(c, err.Error(), nil)
	}

	var req UpdateTypeRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	providers := make([]domain.ProviderType, 0, len(req.Providers))
	for _, raw := range req.Providers {
		p, err := domain.ParseProviderType(raw)
		if err != nil {
			return NewValidationError(c, err.Error(), []ValidationError{
				{Field: "providers", Message: "Unknown provider type"},
			})
		}
		providers = append(providers, p)
	}

	cfg, err := h.service.UpdateType(c.Request().Context(), ownerID, notificationType, req.Enabled, req.Settings, providers)
	if err != nil {
		return handleServiceError(c, err, ownerID, "update notification type")
	}

	log.Info().
		Int32("owner_id", ownerID).
		Str("type", string(notificationType)).
		Bool("enabled", cfg.Enabled).
		Msg("Notification type updated")

	return c.JSON(http.StatusOK, toTypeResponse(cfg))
}

// TestProvider handles POST /api/v1/settings/notifications/test/:type
func (h *NotificationSettingsHandler) TestProvider(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}
	providerType, err := domain.ParseProviderType(c.Param("type"))
	if err != nil {
		return NewValidationError(c, err.Error(), nil)
	}

	if err := h.service.TestProvider(c.Request().Context(), ownerID, providerType); err != nil {
		return handleServiceError(c, err, ownerID, "send test notification")
	}
	return c.JSON(http.StatusOK, TestResponse{ProviderType: string(providerType), Delivered: true})
}

func toProviderResponse(p *domain.ProviderConfig) ProviderResponse {
	credentials := p.Credentials
	if credentials == nil {
		credentials = map[string]string{}
	}
	return ProviderResponse{
		ProviderType: string(p.Type),
		Enabled:      p.Enabled,
		Credentials:  credentials,
		UpdatedAt:    formatTimestamp(p.UpdatedAt),
	}
}

func toTypeResponse(t *domain.TypeConfig) TypeResponse {
	settings := t.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	providers := make([]string, len(t.Providers))
	for i, p := range t.Providers {
		providers[i] = string(p)
	}
	return TypeResponse{
		Type:      string(t.Type),
		Enabled:   t.Enabled,
		Settings:  settings,
		Providers: providers,
		UpdatedAt: formatTimestamp(t.UpdatedAt),
	}
}

// formatTimestamp returns nil for the zero time of an unsaved default
func formatTimestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
