package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

func createBill(t *testing.T, env *testEnv, ownerID int32, amount string, due time.Time) *domain.Obligation {
	t.Helper()
	o, err := env.obligations.CreateOneTime(context.Background(), ownerID, domain.CreateObligationInput{
		Kind:    domain.KindBill,
		Name:    "Electric",
		Amount:  decimal.RequireFromString(amount),
		DueDate: due,
	})
	require.NoError(t, err)
	return o
}

func TestMarkPaid_RoundTrip(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	bill := createBill(t, env, 1, "50.00", date(2024, 3, 5))

	paid, entry, err := env.payments.MarkPaid(ctx, 1, bill.ID, date(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidDate)
	assert.Equal(t, date(2024, 3, 1), *paid.PaidDate)
	assert.Equal(t, "50.00", entry.Amount.StringFixed(2))
	assert.Equal(t, date(2024, 3, 1), entry.PaidDate)

	ledger, err := env.payments.ListForObligation(ctx, 1, bill.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	unpaid, err := env.payments.MarkUnpaid(ctx, 1, bill.ID)
	require.NoError(t, err)
	assert.False(t, unpaid.IsPaid)
	assert.Nil(t, unpaid.PaidDate)

	ledger, err = env.payments.ListForObligation(ctx, 1, bill.ID)
	require.NoError(t, err)
	assert.Empty(t, ledger)

	assert.Contains(t, env.publisher.types(1), "obligation.paid")
	assert.Contains(t, env.publisher.types(1), "obligation.unpaid")
}

func TestMarkPaid_AlreadyPaid(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	bill := createBill(t, env, 1, "20.00", date(2024, 3, 5))

	_, _, err := env.payments.MarkPaid(ctx, 1, bill.ID, date(2024, 3, 1))
	require.NoError(t, err)
	_, _, err = env.payments.MarkPaid(ctx, 1, bill.ID, date(2024, 3, 2))
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
	assert.True(t, domain.IsConflict(err))

	ledger, err := env.payments.ListForObligation(ctx, 1, bill.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, date(2024, 3, 1), ledger[0].PaidDate)
}

func TestMarkPaid_Errors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	bill := createBill(t, env, 1, "20.00", date(2024, 3, 5))

	_, _, err := env.payments.MarkPaid(ctx, 1, bill.ID, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	_, _, err = env.payments.MarkPaid(ctx, 2, bill.ID, date(2024, 3, 1))
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	_, _, err = env.payments.MarkPaid(ctx, 1, 404, date(2024, 3, 1))
	assert.ErrorIs(t, err, domain.ErrObligationNotFound)

	env.paymentRepo.MarkPaidErr = errors.New("tx aborted")
	_, _, err = env.payments.MarkPaid(ctx, 1, bill.ID, date(2024, 3, 1))
	assert.Error(t, err)

	o, err := env.obligationRepo.GetByID(ctx, 1, bill.ID)
	require.NoError(t, err)
	assert.False(t, o.IsPaid)
}

func TestMarkUnpaid_NotPaid(t *testing.T) {
	env := newTestEnv()
	bill := createBill(t, env, 1, "20.00", date(2024, 3, 5))

	_, err := env.payments.MarkUnpaid(context.Background(), 1, bill.ID)
	assert.ErrorIs(t, err, domain.ErrNotPaid)
}

func TestMarkUnpaid_LedgerMissing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	bill := createBill(t, env, 1, "20.00", date(2024, 3, 5))
	_, _, err := env.payments.MarkPaid(ctx, 1, bill.ID, date(2024, 3, 1))
	require.NoError(t, err)

	for id := range env.obligationRepo.Ledger {
		delete(env.obligationRepo.Ledger, id)
	}

	_, err = env.payments.MarkUnpaid(ctx, 1, bill.ID)
	assert.ErrorIs(t, err, domain.ErrLedgerMissing)

	o, err := env.obligationRepo.GetByID(ctx, 1, bill.ID)
	require.NoError(t, err)
	assert.True(t, o.IsPaid)
}

func TestMarkUnpaid_RemovesLatestEntryOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	bill := createBill(t, env, 1, "20.00", date(2024, 3, 5))
	env.paymentRepo.AddLedgerEntry(&domain.PaymentLedgerEntry{
		ObligationID: bill.ID, OwnerID: 1, Amount: decimal.NewFromInt(20), PaidDate: date(2024, 2, 1),
	})
	_, _, err := env.payments.MarkPaid(ctx, 1, bill.ID, date(2024, 3, 1))
	require.NoError(t, err)

	_, err = env.payments.MarkUnpaid(ctx, 1, bill.ID)
	require.NoError(t, err)

	ledger, err := env.payments.ListForObligation(ctx, 1, bill.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, date(2024, 2, 1), ledger[0].PaidDate)
}

func TestPaymentsInvalidateCachedLists(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	bill := createBill(t, env, 1, "75.00", date(2024, 3, 5))

	bills, err := env.obligations.ListBills(ctx, 1)
	require.NoError(t, err)
	require.False(t, bills[0].IsPaid)
	payments, err := env.payments.ListPayments(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Empty(t, payments)

	_, _, err = env.payments.MarkPaid(ctx, 1, bill.ID, date(2024, 3, 1))
	require.NoError(t, err)

	bills, err = env.obligations.ListBills(ctx, 1)
	require.NoError(t, err)
	assert.True(t, bills[0].IsPaid)
	payments, err = env.payments.ListPayments(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestListPayments_Range(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	for i, day := range []int{1, 10, 20} {
		bill := createBill(t, env, 1, "10.00", date(2024, 3, day))
		_, _, err := env.payments.MarkPaid(ctx, 1, bill.ID, date(2024, 3, day))
		require.NoError(t, err, "bill %d", i)
	}
	createBill(t, env, 2, "10.00", date(2024, 3, 10))

	all, err := env.payments.ListPayments(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, date(2024, 3, 20), all[0].PaidDate)

	ranged, err := env.payments.ListPayments(ctx, 1, date(2024, 3, 10), date(2024, 3, 20))
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, date(2024, 3, 10), ranged[0].PaidDate)

	fromOnly, err := env.payments.ListPayments(ctx, 1, date(2024, 3, 10), time.Time{})
	require.NoError(t, err)
	assert.Len(t, fromOnly, 2)

	other, err := env.payments.ListPayments(ctx, 2, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
