package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObligation_PaymentTransitions(t *testing.T) {
	o := &Obligation{ID: 7, OwnerID: 3, Amount: decimal.RequireFromString("50.00")}
	require.Equal(t, StateUnpaid, o.State())
	require.NoError(t, o.CanMarkPaid())

	entry := o.ApplyPaid(time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC))

	assert.Equal(t, StatePaid, o.State())
	require.NotNil(t, o.PaidDate)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *o.PaidDate)
	assert.Equal(t, int32(7), entry.ObligationID)
	assert.Equal(t, int32(3), entry.OwnerID)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("50.00")))
	assert.ErrorIs(t, o.CanMarkPaid(), ErrAlreadyPaid)

	require.NoError(t, o.CanMarkUnpaid(entry))
	o.ApplyUnpaid()

	assert.Equal(t, StateUnpaid, o.State())
	assert.Nil(t, o.PaidDate)
}

func TestObligation_CanMarkUnpaid(t *testing.T) {
	unpaid := &Obligation{ID: 1}
	assert.ErrorIs(t, unpaid.CanMarkUnpaid(&PaymentLedgerEntry{}), ErrNotPaid)

	paidWithoutLedger := &Obligation{ID: 1, IsPaid: true}
	assert.ErrorIs(t, paidWithoutLedger.CanMarkUnpaid(nil), ErrLedgerMissing)
}

func TestObligation_LineageRoot(t *testing.T) {
	anchor := &Obligation{ID: 10}
	assert.Equal(t, int32(10), anchor.LineageRoot())

	parent := int32(10)
	child := &Obligation{ID: 11, ParentID: &parent}
	assert.Equal(t, int32(10), child.LineageRoot())
}

func TestNewOccurrence_CopiesTemplate(t *testing.T) {
	category := int32(4)
	notes := "autopay"
	tmpl := &RecurringTemplate{
		ID:             2,
		OwnerID:        9,
		Kind:           KindIncome,
		Name:           "Salary",
		ExpectedAmount: decimal.NewFromInt(3000),
		CategoryID:     &category,
		Notes:          &notes,
	}

	o := NewOccurrence(tmpl, time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, int32(9), o.OwnerID)
	assert.Equal(t, KindIncome, o.Kind)
	require.NotNil(t, o.TemplateID)
	assert.Equal(t, int32(2), *o.TemplateID)
	assert.Equal(t, "Salary", o.Name)
	assert.True(t, o.Amount.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), o.DueDate)
	assert.Equal(t, &category, o.CategoryID)
	assert.Equal(t, &notes, o.Notes)
	assert.False(t, o.IsPaid)
}
