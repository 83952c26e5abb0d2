package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/middleware"
	"github.com/craigrbailey/BillPilot-sub000/internal/service"
)

// TemplateHandler handles payee and income source HTTP requests
type TemplateHandler struct {
	service *service.TemplateService
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(service *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// CreateTemplateRequest represents the create payee / income source request body
type CreateTemplateRequest struct {
	Name       string  `json:"name"`
	Amount     string  `json:"amount"`
	Frequency  string  `json:"frequency"`
	StartDate  string  `json:"startDate"`
	CategoryID *int32  `json:"categoryId,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// TemplateResponse represents a recurring template in API responses
type TemplateResponse struct {
	ID         int32   `json:"id"`
	Kind       string  `json:"kind"`
	Name       string  `json:"name"`
	Amount     string  `json:"amount"`
	Frequency  string  `json:"frequency"`
	StartDate  string  `json:"startDate"`
	CategoryID *int32  `json:"categoryId,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

// TemplateListResponse represents the list response
type TemplateListResponse struct {
	Data []TemplateResponse `json:"data"`
}

// CreateTemplateResponse carries the new template and its initial occurrences
type CreateTemplateResponse struct {
	Template  TemplateResponse     `json:"template"`
	Generated []ObligationResponse `json:"generated"`
}

// CreatePayee handles POST /api/v1/payees
func (h *TemplateHandler) CreatePayee(c echo.Context) error { return h.create(c, domain.KindBill) }

// CreateIncomeSource handles POST /api/v1/income/sources
func (h *TemplateHandler) CreateIncomeSource(c echo.Context) error {
	return h.create(c, domain.KindIncome)
}

// ListPayees handles GET /api/v1/payees
func (h *TemplateHandler) ListPayees(c echo.Context) error { return h.list(c, domain.KindBill) }

// ListIncomeSources handles GET /api/v1/income/sources
func (h *TemplateHandler) ListIncomeSources(c echo.Context) error {
	return h.list(c, domain.KindIncome)
}

// DeletePayee handles DELETE /api/v1/payees/:id
func (h *TemplateHandler) DeletePayee(c echo.Context) error { return h.delete(c, domain.KindBill) }

// DeleteIncomeSource handles DELETE /api/v1/income/sources/:id
func (h *TemplateHandler) DeleteIncomeSource(c echo.Context) error {
	return h.delete(c, domain.KindIncome)
}

// CheckRecurring handles GET /api/v1/check-recurring
func (h *TemplateHandler) CheckRecurring(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}

	result, err := h.service.CheckRecurring(c.Request().Context(), ownerID)
	if err != nil {
		return handleServiceError(c, err, ownerID, "check recurring")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *TemplateHandler) create(c echo.Context, kind domain.Kind) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}

	var req CreateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var fieldErrs []ValidationError
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		fieldErrs = append(fieldErrs, ValidationError{Field: "amount", Message: "Must be a valid decimal number"})
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		fieldErrs = append(fieldErrs, ValidationError{Field: "startDate", Message: "Must be in YYYY-MM-DD format"})
	}
	if len(fieldErrs) > 0 {
		return NewValidationError(c, "Invalid request", fieldErrs)
	}

	template, generated, err := h.service.CreateTemplate(c.Request().Context(), ownerID, domain.CreateTemplateInput{
		Kind:           kind,
		Name:           req.Name,
		ExpectedAmount: amount,
		Frequency:      domain.Frequency(strings.ToUpper(strings.TrimSpace(req.Frequency))),
		StartDate:      startDate,
		CategoryID:     req.CategoryID,
		Notes:          req.Notes,
	})
	if err != nil {
		return handleServiceError(c, err, ownerID, "create template")
	}

	log.Info().
		Int32("owner_id", ownerID).
		Int32("template_id", template.ID).
		Str("kind", string(kind)).
		Int("generated", len(generated)).
		Msg("Recurring template created")

	response := CreateTemplateResponse{
		Template:  toTemplateResponse(template),
		Generated: make([]ObligationResponse, len(generated)),
	}
	for i, o := range generated {
		response.Generated[i] = toObligationResponse(o)
	}
	return c.JSON(http.StatusCreated, response)
}

func (h *TemplateHandler) list(c echo.Context, kind domain.Kind) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}

	templates, err := h.service.ListTemplates(c.Request().Context(), ownerID, kind)
	if err != nil {
		return handleServiceError(c, err, ownerID, "list templates")
	}

	response := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		response[i] = toTemplateResponse(t)
	}
	return c.JSON(http.StatusOK, TemplateListResponse{Data: response})
}

func (h *TemplateHandler) delete(c echo.Context, kind domain.Kind) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	if err := h.service.DeleteTemplate(c.Request().Context(), ownerID, kind, id); err != nil {
		return handleServiceError(c, err, ownerID, "delete template")
	}

	log.Info().Int32("owner_id", ownerID).Int32("template_id", id).Msg("Recurring template deleted")
	return c.NoContent(http.StatusNoContent)
}

func toTemplateResponse(t *domain.RecurringTemplate) TemplateResponse {
	return TemplateResponse{
		ID:         t.ID,
		Kind:       string(t.Kind),
		Name:       t.Name,
		Amount:     t.ExpectedAmount.StringFixed(2),
		Frequency:  string(t.Frequency),
		StartDate:  t.StartDate.Format(DateLayout),
		CategoryID: t.CategoryID,
		Notes:      t.Notes,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  t.UpdatedAt.Format(time.RFC3339),
	}
}
