package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentLedgerEntry records a completed payment against an obligation
type PaymentLedgerEntry struct {
	ID           int32           `json:"id"`
	ObligationID int32           `json:"obligationId"`
	OwnerID      int32           `json:"ownerId"`
	Amount       decimal.Decimal `json:"amount"`
	PaidDate     time.Time       `json:"paidDate"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// PaymentRepository persists ledger entries together with the obligation state they imply.
// Both transitions run in a single transaction and apply the Obligation guards.
type PaymentRepository interface {
	MarkPaid(ctx context.Context, ownerID int32, obligationID int32, paidDate time.Time) (*Obligation, *PaymentLedgerEntry, error)
	MarkUnpaid(ctx context.Context, ownerID int32, obligationID int32) (*Obligation, error)
	ListByObligation(ctx context.Context, ownerID int32, obligationID int32) ([]*PaymentLedgerEntry, error)
	ListByOwner(ctx context.Context, ownerID int32, from, to time.Time) ([]*PaymentLedgerEntry, error)
}
