package domain

import (
	"context"
	"time"

	"github.com/craigrbailey/BillPilot-sub000/internal/util"
	"github.com/shopspring/decimal"
)

// PaymentState is the paid/unpaid state of an obligation
type PaymentState string

const (
	StateUnpaid PaymentState = "unpaid"
	StatePaid   PaymentState = "paid"
)

// Obligation is a single bill or income instance with a due date
type Obligation struct {
	ID         int32           `json:"id"`
	OwnerID    int32           `json:"ownerId"`
	Kind       Kind            `json:"kind"`
	TemplateID *int32          `json:"templateId,omitempty"`
	ParentID   *int32          `json:"parentId,omitempty"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    time.Time       `json:"dueDate"`
	IsPaid     bool            `json:"isPaid"`
	PaidDate   *time.Time      `json:"paidDate,omitempty"`
	CategoryID *int32          `json:"categoryId,omitempty"`
	Notes      *string         `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// State returns the current payment state
func (o *Obligation) State() PaymentState {
	if o.IsPaid {
		return StatePaid
	}
	return StateUnpaid
}

// LineageRoot returns the id of the first-generated instance of this obligation's group
func (o *Obligation) LineageRoot() int32 {
	if o.ParentID != nil {
		return *o.ParentID
	}
	return o.ID
}

// CanMarkPaid checks the Unpaid -> Paid precondition
func (o *Obligation) CanMarkPaid() error {
	if o.IsPaid {
		return ErrAlreadyPaid
	}
	return nil
}

// CanMarkUnpaid checks the Paid -> Unpaid precondition. latest is the most recent
// ledger entry for the obligation, nil when none exists.
func (o *Obligation) CanMarkUnpaid(latest *PaymentLedgerEntry) error {
	if !o.IsPaid {
		return ErrNotPaid
	}
	if latest == nil {
		return ErrLedgerMissing
	}
	return nil
}

// ApplyPaid moves the obligation to Paid and returns the ledger entry that records it.
// Callers persist both in the same transaction.
func (o *Obligation) ApplyPaid(paidDate time.Time) *PaymentLedgerEntry {
	d := util.DateOnly(paidDate)
	o.IsPaid = true
	o.PaidDate = &d
	return &PaymentLedgerEntry{
		ObligationID: o.ID,
		OwnerID:      o.OwnerID,
		Amount:       o.Amount,
		PaidDate:     d,
	}
}

// ApplyUnpaid moves the obligation back to Unpaid
func (o *Obligation) ApplyUnpaid() {
	o.IsPaid = false
	o.PaidDate = nil
}

// NewOccurrence builds the obligation a template produces for one due date.
// Generated children carry the template's notes.
func NewOccurrence(t *RecurringTemplate, due time.Time) *Obligation {
	templateID := t.ID
	return &Obligation{
		OwnerID:    t.OwnerID,
		Kind:       t.Kind,
		TemplateID: &templateID,
		Name:       t.Name,
		Amount:     t.ExpectedAmount,
		DueDate:    util.DateOnly(due),
		CategoryID: t.CategoryID,
		Notes:      t.Notes,
	}
}

// CreateObligationInput is the request to create a standalone one-time obligation
type CreateObligationInput struct {
	Kind       Kind
	Name       string
	Amount     decimal.Decimal
	DueDate    time.Time
	CategoryID *int32
	Notes      *string
}

// UpdateObligationInput is the request to edit an obligation
type UpdateObligationInput struct {
	Name       string
	Amount     decimal.Decimal
	DueDate    time.Time
	CategoryID *int32
	Notes      *string
}

// OccurrencePlanner receives the date generation resumes after (see ResumeAfter; nil
// when the template never generated) and returns the due dates to insert.
type OccurrencePlanner func(after *time.Time) []time.Time

type ObligationRepository interface {
	Create(ctx context.Context, obligation *Obligation) (*Obligation, error)
	GetByID(ctx context.Context, ownerID int32, id int32) (*Obligation, error)
	ListByOwner(ctx context.Context, ownerID int32, kind Kind) ([]*Obligation, error)
	Update(ctx context.Context, ownerID int32, id int32, input *UpdateObligationInput) (*Obligation, error)
	Delete(ctx context.Context, ownerID int32, id int32, cascade bool) (int64, error)
	FindMaxDueDate(ctx context.Context, templateID int32) (*time.Time, error)
	// ExtendLineage serializes on the template, resumes after its max due date or watermark,
	// asks plan for new dates, bulk inserts them and advances the watermark in one transaction.
	ExtendLineage(ctx context.Context, template *RecurringTemplate, plan OccurrencePlanner) ([]*Obligation, error)
}
