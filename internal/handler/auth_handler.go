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

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// AuthCallbackResponse represents the response from the auth callback
type AuthCallbackResponse struct {
	Owner      OwnerResponse `json:"owner"`
	IsNewOwner bool          `json:"isNewOwner"`
}

// OwnerResponse represents an owner in API responses
type OwnerResponse struct {
	ID        int32   `json:"id"`
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	CreatedAt string  `json:"createdAt"`
}

// Callback handles the Auth0 callback after successful authentication.
// The frontend calls it once it holds a token; the owner row is created on first sight.
// POST /auth/callback
func (h *AuthHandler) Callback(c echo.Context) error {
	auth0ID := middleware.GetAuth0ID(c)
	if auth0ID == "" {
		log.Error().Msg("No Auth0 ID in context - middleware may not be configured")
		return NewUnauthorizedError(c, "Authentication required")
	}

	var email, name string
	if customClaims := middleware.GetCustomClaims(c); customClaims != nil {
		email = customClaims.Email
		name = customClaims.Name
	}

	// Email is the default EMAIL provider recipient
	if email == "" {
		log.Error().Str("auth0_id", auth0ID).Msg("No email in JWT claims")
		return NewValidationError(c, "Email is required for authentication", []ValidationError{
			{Field: "email", Message: "Email claim is missing from token"},
		})
	}

	var namePtr *string
	if name != "" {
		namePtr = &name
	}

	result, err := h.authService.AuthenticateOwner(c.Request().Context(), auth0ID, email, namePtr)
	if err != nil {
		log.Error().Err(err).Str("auth0_id", auth0ID).Msg("Failed to authenticate owner")
		return NewInternalError(c, "Failed to authenticate owner")
	}

	return c.JSON(http.StatusOK, AuthCallbackResponse{
		Owner:      toOwnerResponse(result.Owner),
		IsNewOwner: result.IsNewOwner,
	})
}

// Me returns the current authenticated owner
// GET /auth/me
func (h *AuthHandler) Me(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Authentication required")
	}

	owner, err := h.authService.GetOwnerByID(c.Request().Context(), ownerID)
	if err != nil {
		return handleServiceError(c, err, ownerID, "get owner")
	}

	return c.JSON(http.StatusOK, AuthCallbackResponse{Owner: toOwnerResponse(owner)})
}

// LogoutResponse represents the response from logout
type LogoutResponse struct {
	Message string `json:"message"`
}

// Logout handles owner logout
// POST /auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	auth0ID := middleware.GetAuth0ID(c)
	if auth0ID == "" {
		return NewUnauthorizedError(c, "Authentication required")
	}

	log.Info().Str("auth0_id", auth0ID).Msg("Owner logged out")

	// Auth0 handles actual session termination
	return c.JSON(http.StatusOK, LogoutResponse{
		Message: "Logged out successfully",
	})
}

func toOwnerResponse(o *domain.Owner) OwnerResponse {
	return OwnerResponse{
		ID:        o.ID,
		Email:     o.Email,
		Name:      o.Name,
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
	}
}
