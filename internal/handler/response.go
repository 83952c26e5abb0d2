package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/notify"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation   = "https://billpilot.app/errors/validation"
	ErrorTypeNotFound     = "https://billpilot.app/errors/not-found"
	ErrorTypeUnauthorized = "https://billpilot.app/errors/unauthorized"
	ErrorTypeForbidden    = "https://billpilot.app/errors/forbidden"
	ErrorTypeConflict     = "https://billpilot.app/errors/conflict"
	ErrorTypeDelivery     = "https://billpilot.app/errors/delivery"
	ErrorTypeInternal     = "https://billpilot.app/errors/internal"
)

// DateLayout is the wire format of every calendar date
const DateLayout = "2006-01-02"

func problem(c echo.Context, status int, errorType, title, detail string, errs []ValidationError) error {
	return c.JSON(status, ProblemDetails{
		Type:     errorType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errs,
	})
}

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return problem(c, http.StatusBadRequest, ErrorTypeValidation, "Validation Error", detail, errors)
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return problem(c, http.StatusNotFound, ErrorTypeNotFound, "Not Found", detail, nil)
}

// NewUnauthorizedError creates an unauthorized error response
func NewUnauthorizedError(c echo.Context, detail string) error {
	return problem(c, http.StatusUnauthorized, ErrorTypeUnauthorized, "Unauthorized", detail, nil)
}

// NewForbiddenError creates a forbidden error response
func NewForbiddenError(c echo.Context, detail string) error {
	return problem(c, http.StatusForbidden, ErrorTypeForbidden, "Forbidden", detail, nil)
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail string) error {
	return problem(c, http.StatusConflict, ErrorTypeConflict, "Conflict", detail, nil)
}

// NewDeliveryError creates a bad gateway response for failed provider deliveries
func NewDeliveryError(c echo.Context, detail string) error {
	return problem(c, http.StatusBadGateway, ErrorTypeDelivery, "Delivery Failed", detail, nil)
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return problem(c, http.StatusInternalServerError, ErrorTypeInternal, "Internal Server Error", detail, nil)
}

// handleServiceError maps a service error onto its problem response.
// Unexpected errors are logged with the owner and the failed action.
func handleServiceError(c echo.Context, err error, ownerID int32, action string) error {
	var deliveryErr *notify.DeliveryError
	switch {
	case domain.IsValidation(err):
		return NewValidationError(c, err.Error(), nil)
	case errors.Is(err, domain.ErrAccessDenied):
		return NewForbiddenError(c, "Access denied")
	case domain.IsNotFound(err):
		return NewNotFoundError(c, err.Error())
	case domain.IsConflict(err), errors.Is(err, domain.ErrJobAlreadyRunning):
		if errors.Is(err, domain.ErrLedgerMissing) {
			log.Error().Err(err).Int32("owner_id", ownerID).Str("action", action).Msg("Ledger inconsistency")
		}
		return NewConflictError(c, err.Error())
	case errors.As(err, &deliveryErr):
		log.Warn().Err(err).Int32("owner_id", ownerID).Str("action", action).Msg("Provider delivery failed")
		return NewDeliveryError(c, err.Error())
	}

	log.Error().Err(err).Int32("owner_id", ownerID).Str("action", action).Msg("Request failed")
	return NewInternalError(c, "Failed to "+action)
}

func parseID(c echo.Context, name string) (int32, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}

func invalidID(c echo.Context, name string) error {
	return NewValidationError(c, "Invalid "+name, []ValidationError{
		{Field: name, Message: "Must be a positive integer"},
	})
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
