package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/middleware"
	"github.com/craigrbailey/BillPilot-sub000/internal/service"
	"github.com/craigrbailey/BillPilot-sub000/internal/util"
)

// ObligationHandler handles bill and income instance HTTP requests
type ObligationHandler struct {
	obligations *service.ObligationService
	payments    *service.PaymentService
	now         func() time.Time
}

// NewObligationHandler creates a new ObligationHandler
func NewObligationHandler(obligations *service.ObligationService, payments *service.PaymentService) *ObligationHandler {
	return &ObligationHandler{
		obligations: obligations,
		payments:    payments,
		now:         time.Now,
	}
}

// ObligationRequest is the body of create and update requests
type ObligationRequest struct {
	Name       string  `json:"name"`
	Amount     string  `json:"amount"`
	DueDate    string  `json:"dueDate"`
	CategoryID *int32  `json:"categoryId,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// PayRequest is the body of a pay request. An empty date means today.
type PayRequest struct {
	PaymentDate string `json:"paymentDate"`
}

// ObligationResponse represents an obligation in API responses
type ObligationResponse struct {
	ID         int32   `json:"id"`
	Kind       string  `json:"kind"`
	TemplateID *int32  `json:"templateId,omitempty"`
	ParentID   *int32  `json:"parentId,omitempty"`
	Name       string  `json:"name"`
	Amount     string  `json:"amount"`
	DueDate    string  `json:"dueDate"`
	IsPaid     bool    `json:"isPaid"`
	PaidDate   *string `json:"paidDate"`
	CategoryID *int32  `json:"categoryId,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

// ObligationListResponse represents the list response
type ObligationListResponse struct {
	Data []ObligationResponse `json:"data"`
}

// PaymentResponse represents a ledger entry in API responses
type PaymentResponse struct {
	ID           int32  `json:"id"`
	ObligationID int32  `json:"obligationId"`
	Amount       string `json:"amount"`
	PaidDate     string `json:"paidDate"`
	CreatedAt    string `json:"createdAt"`
}

// PaymentListResponse represents a ledger listing
type PaymentListResponse struct {
	Data []PaymentResponse `json:"data"`
}

// PayResponse is returned by the pay endpoints
type PayResponse struct {
	Obligation ObligationResponse `json:"obligation"`
	Payment    PaymentResponse    `json:"payment"`
}

// DeleteResponse reports how many rows a delete removed
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// ListBills handles GET /api/v1/bills
func (h *ObligationHandler) ListBills(c echo.Context) error { return h.list(c, domain.KindBill) }

// ListIncome handles GET /api/v1/income
func (h *ObligationHandler) ListIncome(c echo.Context) error { return h.list(c, domain.KindIncome) }

// GetBill handles GET /api/v1/bills/:id
func (h *ObligationHandler) GetBill(c echo.Context) error { return h.get(c, domain.KindBill) }

// GetIncome handles GET /api/v1/income/:id
func (h *ObligationHandler) GetIncome(c echo.Context) error { return h.get(c, domain.KindIncome) }

// CreateBill handles POST /api/v1/bills
func (h *ObligationHandler) CreateBill(c echo.Context) error { return h.create(c, domain.KindBill) }

// CreateIncome handles POST /api/v1/income
func (h *ObligationHandler) CreateIncome(c echo.Context) error { return h.create(c, domain.KindIncome) }

// UpdateBill handles PUT /api/v1/bills/:id
func (h *ObligationHandler) UpdateBill(c echo.Context) error { return h.update(c, domain.KindBill) }

// UpdateIncome handles PUT /api/v1/income/:id
func (h *ObligationHandler) UpdateIncome(c echo.Context) error { return h.update(c, domain.KindIncome) }

// DeleteBill handles DELETE /api/v1/bills/:id?cascade=true
func (h *ObligationHandler) DeleteBill(c echo.Context) error { return h.delete(c, domain.KindBill) }

// DeleteIncome handles DELETE /api/v1/income/:id?cascade=true
func (h *ObligationHandler) DeleteIncome(c echo.Context) error { return h.delete(c, domain.KindIncome) }

// PayBill handles POST /api/v1/bills/:id/pay
func (h *ObligationHandler) PayBill(c echo.Context) error { return h.pay(c, domain.KindBill) }

// ReceiveIncome handles POST /api/v1/income/:id/receive
func (h *ObligationHandler) ReceiveIncome(c echo.Context) error { return h.pay(c, domain.KindIncome) }

// UnpayBill handles PUT /api/v1/bills/:id/unpay
func (h *ObligationHandler) UnpayBill(c echo.Context) error { return h.unpay(c, domain.KindBill) }

// UnreceiveIncome handles PUT /api/v1/income/:id/unreceive
func (h *ObligationHandler) UnreceiveIncome(c echo.Context) error {
	return h.unpay(c, domain.KindIncome)
}

// ListBillPayments handles GET /api/v1/bills/:id/payments
func (h *ObligationHandler) ListBillPayments(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	if _, err := h.obligations.Get(c.Request().Context(), ownerID, domain.KindBill, id); err != nil {
		return handleServiceError(c, err, ownerID, "get bill")
	}
	entries, err := h.payments.ListForObligation(c.Request().Context(), ownerID, id)
	if err != nil {
		return handleServiceError(c, err, ownerID, "list bill payments")
	}
	return c.JSON(http.StatusOK, PaymentListResponse{Data: toPaymentResponses(entries)})
}

func (h *ObligationHandler) list(c echo.Context, kind domain.Kind) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}

	obligations, err := h.obligations.List(c.Request().Context(), ownerID, kind)
	if err != nil {
		return handleServiceError(c, err, ownerID, "list "+string(kind))
	}

	response := make([]ObligationResponse, len(obligations))
	for i, o := range obligations {
		response[i] = toObligationResponse(o)
	}
	return c.JSON(http.StatusOK, ObligationListResponse{Data: response})
}

func (h *ObligationHandler) get(c echo.Context, kind domain.Kind) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	o, err := h.obligations.Get(c.Request().Context(), ownerID, kind, id)
	if err != nil {
		return handleServiceError(c, err, ownerID, "get "+string(kind))
	}
	return c.JSON(http.StatusOK, toObligationResponse(o))
}

func (h *ObligationHandler) create(c echo.Context, kind domain.Kind) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}

	var req ObligationRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	amount, dueDate, fieldErrs := parseObligationRequest(req)
	if len(fieldErrs) > 0 {
		return NewValidationError(c, "Invalid request", fieldErrs)
	}

	created, err := h.obligations.CreateOneTime(c.Request().Context(), ownerID, domain.CreateObligationInput{
		Kind:       kind,
		Name:       req.Name,
		Amount:     amount,
		DueDate:    dueDate,
		CategoryID: req.CategoryID,
		Notes:      req.Notes,
	})
	if err != nil {
		return handleServiceError(c, err, ownerID, "create "+string(kind))
	}

	log.Info().Int32("owner_id", ownerID).Int32("obligation_id", created.ID).Str("kind", string(kind)).Msg("Obligation created")
	return c.JSON(http.StatusCreated, toObligationResponse(created))
}

func (h *ObligationHandler) update(c echo.Context, kind domain.Kind) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	var req ObligationRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	amount, dueDate, fieldErrs := parseObligationRequest(req)
	if len(fieldErrs) > 0 {
		return NewValidationError(c, "Invalid request", fieldErrs)
	}

	updated, err := h.obligations.Update(c.Request().Context(), ownerID, kind, id, domain.UpdateObligationInput{
		Name:       req.Name,
		Amount:     amount,
		DueDate:    dueDate,
		CategoryID: req.CategoryID,
		Notes:      req.Notes,
	})
	if err != nil {
		return handleServiceError(c, err, ownerID, "update "+string(kind))
	}
	return c.JSON(http.StatusOK, toObligationResponse(updated))
}

func (h *ObligationHandler) delete(c echo.Context, kind domain.Kind) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	cascade := false
	if raw := c.QueryParam("cascade"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return NewValidationError(c, "Invalid cascade flag", []ValidationError{
				{Field: "cascade", Message: "Must be true or false"},
			})
		}
		cascade = parsed
	}

	deleted, err := h.obligations.Delete(c.Request().Context(), ownerID, kind, id, cascade)
	if err != nil {
		return handleServiceError(c, err, ownerID, "delete "+string(kind))
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: deleted})
}

func (h *ObligationHandler) pay(c echo.Context, kind domain.Kind) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	var req PayRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	paidDate := util.DateOnly(h.now())
	if req.PaymentDate != "" {
		parsed, err := parseDate(req.PaymentDate)
		if err != nil {
			return NewValidationError(c, "Invalid payment date", []ValidationError{
				{Field: "paymentDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		paidDate = parsed
	}

	ctx := c.Request().Context()
	if _, err := h.obligations.Get(ctx, ownerID, kind, id); err != nil {
		return handleServiceError(c, err, ownerID, "get "+string(kind))
	}
	o, entry, err := h.payments.MarkPaid(ctx, ownerID, id, paidDate)
	if err != nil {
		return handleServiceError(c, err, ownerID, "mark paid")
	}
	return c.JSON(http.StatusOK, PayResponse{
		Obligation: toObligationResponse(o),
		Payment:    toPaymentResponse(entry),
	})
}

func (h *ObligationHandler) unpay(c echo.Context, kind domain.Kind) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	ctx := c.Request().Context()
	if _, err := h.obligations.Get(ctx, ownerID, kind, id); err != nil {
		return handleServiceError(c, err, ownerID, "get "+string(kind))
	}
	o, err := h.payments.MarkUnpaid(ctx, ownerID, id)
	if err != nil {
		return handleServiceError(c, err, ownerID, "mark unpaid")
	}
	return c.JSON(http.StatusOK, toObligationResponse(o))
}

func parseObligationRequest(req ObligationRequest) (decimal.Decimal, time.Time, []ValidationError) {
	var errs []ValidationError
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		errs = append(errs, ValidationError{Field: "amount", Message: "Must be a valid decimal number"})
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		errs = append(errs, ValidationError{Field: "dueDate", Message: "Must be in YYYY-MM-DD format"})
	}
	return amount, dueDate, errs
}

func toObligationResponse(o *domain.Obligation) ObligationResponse {
	return ObligationResponse{
		ID:         o.ID,
		Kind:       string(o.Kind),
		TemplateID: o.TemplateID,
		ParentID:   o.ParentID,
		Name:       o.Name,
		Amount:     o.Amount.StringFixed(2),
		DueDate:    o.DueDate.Format(DateLayout),
		IsPaid:     o.IsPaid,
		PaidDate:   formatDatePtr(o.PaidDate),
		CategoryID: o.CategoryID,
		Notes:      o.Notes,
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  o.UpdatedAt.Format(time.RFC3339),
	}
}

func toPaymentResponse(e *domain.PaymentLedgerEntry) PaymentResponse {
	return PaymentResponse{
		ID:           e.ID,
		ObligationID: e.ObligationID,
		Amount:       e.Amount.StringFixed(2),
		PaidDate:     e.PaidDate.Format(DateLayout),
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentResponses(entries []*domain.PaymentLedgerEntry) []PaymentResponse {
	response := make([]PaymentResponse, len(entries))
	for i, e := range entries {
		response[i] = toPaymentResponse(e)
	}
	return response
}
