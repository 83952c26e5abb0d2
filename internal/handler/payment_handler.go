package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/craigrbailey/BillPilot-sub000/internal/middleware"
	"github.com/craigrbailey/BillPilot-sub000/internal/service"
)

// PaymentHandler handles payment ledger HTTP requests
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// ListPayments handles GET /api/v1/payments?from=YYYY-MM-DD&to=YYYY-MM-DD
// Both bounds are optional; to is exclusive.
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}

	var from, to time.Time
	var fieldErrs []ValidationError
	if raw := c.QueryParam("from"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			fieldErrs = append(fieldErrs, ValidationError{Field: "from", Message: "Must be in YYYY-MM-DD format"})
		}
		from = d
	}
	if raw := c.QueryParam("to"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			fieldErrs = append(fieldErrs, ValidationError{Field: "to", Message: "Must be in YYYY-MM-DD format"})
		}
		to = d
	}
	if len(fieldErrs) > 0 {
		return NewValidationError(c, "Invalid date range", fieldErrs)
	}

	entries, err := h.payments.ListPayments(c.Request().Context(), ownerID, from, to)
	if err != nil {
		return handleServiceError(c, err, ownerID, "list payments")
	}
	return c.JSON(http.StatusOK, PaymentListResponse{Data: toPaymentResponses(entries)})
}
