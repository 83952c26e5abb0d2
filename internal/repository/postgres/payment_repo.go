package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

const ledgerColumns = `id, obligation_id, owner_id, amount, paid_date, created_at`

// PaymentRepository implements domain.PaymentRepository using PostgreSQL
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// MarkPaid records a ledger entry and flips the obligation to paid in one transaction
func (r *PaymentRepository) MarkPaid(ctx context.Context, ownerID int32, obligationID int32, paidDate time.Time) (*domain.Obligation, *domain.PaymentLedgerEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := getObligation(ctx, tx, ownerID, obligationID, true)
	if err != nil {
		return nil, nil, err
	}
	if err := o.CanMarkPaid(); err != nil {
		return nil, nil, err
	}
	entry := o.ApplyPaid(paidDate)

	amount, err := decimalToPgNumeric(entry.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid amount: %w", err)
	}
	entry, err = scanLedgerEntry(tx.QueryRow(ctx, `
		INSERT INTO payment_ledger (obligation_id, owner_id, amount, paid_date)
		VALUES ($1, $2, $3, $4)
		RETURNING `+ledgerColumns,
		entry.ObligationID, entry.OwnerID, amount, timeToPgDate(entry.PaidDate)))
	if err != nil {
		return nil, nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	updated, err := setPaymentState(ctx, tx, o)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return updated, entry, nil
}

// MarkUnpaid removes the most recent ledger entry and flips the obligation to unpaid in one transaction
func (r *PaymentRepository) MarkUnpaid(ctx context.Context, ownerID int32, obligationID int32) (*domain.Obligation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := getObligation(ctx, tx, ownerID, obligationID, true)
	if err != nil {
		return nil, err
	}

	latest, err := scanLedgerEntry(tx.QueryRow(ctx, `
		SELECT `+ledgerColumns+` FROM payment_ledger
		WHERE obligation_id = $1
		ORDER BY paid_date DESC, id DESC
		LIMIT 1`, obligationID))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err := o.CanMarkUnpaid(latest); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM payment_ledger WHERE id = $1`, latest.ID); err != nil {
		return nil, fmt.Errorf("delete ledger entry: %w", err)
	}
	o.ApplyUnpaid()

	updated, err := setPaymentState(ctx, tx, o)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

// ListByObligation lists ledger entries for one obligation, newest first
func (r *PaymentRepository) ListByObligation(ctx context.Context, ownerID int32, obligationID int32) ([]*domain.PaymentLedgerEntry, error) {
	if _, err := getObligation(ctx, r.pool, ownerID, obligationID, false); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+ledgerColumns+` FROM payment_ledger
		WHERE obligation_id = $1
		ORDER BY paid_date DESC, id DESC`, obligationID)
	if err != nil {
		return nil, err
	}
	return collectLedger(rows)
}

// ListByOwner lists an owner's ledger entries with from <= paid_date < to
func (r *PaymentRepository) ListByOwner(ctx context.Context, ownerID int32, from, to time.Time) ([]*domain.PaymentLedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ledgerColumns+` FROM payment_ledger
		WHERE owner_id = $1 AND paid_date >= $2 AND paid_date < $3
		ORDER BY paid_date DESC, id DESC`, ownerID, timeToPgDate(from), timeToPgDate(to))
	if err != nil {
		return nil, err
	}
	return collectLedger(rows)
}

func setPaymentState(ctx context.Context, tx pgx.Tx, o *domain.Obligation) (*domain.Obligation, error) {
	updated, err := scanObligation(tx.QueryRow(ctx, `
		UPDATE obligations SET is_paid = $2, paid_date = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+obligationColumns, o.ID, o.IsPaid, timePtrToPgDate(o.PaidDate)))
	if err != nil {
		return nil, fmt.Errorf("update payment state: %w", err)
	}
	return updated, nil
}

func collectLedger(rows pgx.Rows) ([]*domain.PaymentLedgerEntry, error) {
	defer rows.Close()
	var result []*domain.PaymentLedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func scanLedgerEntry(row pgx.Row) (*domain.PaymentLedgerEntry, error) {
	var (
		e        domain.PaymentLedgerEntry
		amount   pgtype.Numeric
		paidDate pgtype.Date
	)
	if err := row.Scan(&e.ID, &e.ObligationID, &e.OwnerID, &amount, &paidDate, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	e.Amount = pgNumericToDecimal(amount)
	e.PaidDate = pgDateToTime(paidDate)
	return &e, nil
}
