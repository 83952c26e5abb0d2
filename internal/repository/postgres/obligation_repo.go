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

const obligationColumns = `id, owner_id, kind, template_id, parent_id, name, amount, due_date, is_paid, paid_date, category_id, notes, created_at, updated_at`

const insertObligationSQL = `
	INSERT INTO obligations (owner_id, kind, template_id, parent_id, name, amount, due_date, category_id, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING ` + obligationColumns

// ObligationRepository implements domain.ObligationRepository using PostgreSQL
type ObligationRepository struct {
	pool *pgxpool.Pool
}

// NewObligationRepository creates a new ObligationRepository
func NewObligationRepository(pool *pgxpool.Pool) *ObligationRepository {
	return &ObligationRepository{pool: pool}
}

// Create inserts a single obligation
func (r *ObligationRepository) Create(ctx context.Context, o *domain.Obligation) (*domain.Obligation, error) {
	args, err := insertObligationArgs(o)
	if err != nil {
		return nil, err
	}
	return scanObligation(r.pool.QueryRow(ctx, insertObligationSQL, args...))
}

// GetByID retrieves an obligation, failing with ErrAccessDenied when another owner holds it
func (r *ObligationRepository) GetByID(ctx context.Context, ownerID int32, id int32) (*domain.Obligation, error) {
	return getObligation(ctx, r.pool, ownerID, id, false)
}

// ListByOwner lists an owner's obligations by due date; an empty kind lists both kinds
func (r *ObligationRepository) ListByOwner(ctx context.Context, ownerID int32, kind domain.Kind) ([]*domain.Obligation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+obligationColumns+` FROM obligations
		WHERE owner_id = $1 AND ($2::text = '' OR kind = $2::text)
		ORDER BY due_date, id`, ownerID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// Update edits the mutable fields of an obligation; payment state is left to PaymentRepository
func (r *ObligationRepository) Update(ctx context.Context, ownerID int32, id int32, input *domain.UpdateObligationInput) (*domain.Obligation, error) {
	if _, err := r.GetByID(ctx, ownerID, id); err != nil {
		return nil, err
	}
	amount, err := decimalToPgNumeric(input.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE obligations
		SET name = $3, amount = $4, due_date = $5, category_id = $6, notes = $7, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+obligationColumns,
		id, ownerID, input.Name, amount, timeToPgDate(input.DueDate),
		int32PtrToPgInt4(input.CategoryID), stringPtrToPgText(input.Notes))
	o, err := scanObligation(row)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return nil, fmt.Errorf("%w: another occurrence of this template is already due on that date", domain.ErrInvalidDate)
		}
		return nil, err
	}
	return o, nil
}

// Delete removes one obligation or, with cascade, its whole lineage group.
// It returns the number of rows removed.
func (r *ObligationRepository) Delete(ctx context.Context, ownerID int32, id int32, cascade bool) (int64, error) {
	o, err := r.GetByID(ctx, ownerID, id)
	if err != nil {
		return 0, err
	}

	if !cascade {
		tag, err := r.pool.Exec(ctx, `DELETE FROM obligations WHERE id = $1 AND owner_id = $2`, id, ownerID)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}

	root := o.LineageRoot()
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM obligations
		WHERE owner_id = $1 AND (id = $2 OR parent_id = $2 OR id = $3)`, ownerID, root, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FindMaxDueDate returns the latest stored due date for a template, nil when it has none
func (r *ObligationRepository) FindMaxDueDate(ctx context.Context, templateID int32) (*time.Time, error) {
	return findMaxDueDate(ctx, r.pool, templateID)
}

// ExtendLineage locks the template row so concurrent passes for the same template queue up,
// then resumes after the later of the max due date and the template's watermark, plans,
// inserts and advances the watermark within one transaction. A unique violation or
// serialization failure surfaces as ErrGenerationRace.
func (r *ObligationRepository) ExtendLineage(ctx context.Context, t *domain.RecurringTemplate, plan domain.OccurrencePlanner) ([]*domain.Obligation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		ownerID int32
		through pgtype.Date
	)
	err = tx.QueryRow(ctx, `SELECT owner_id, generated_through FROM recurring_templates WHERE id = $1 FOR UPDATE`, t.ID).
		Scan(&ownerID, &through)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, raceOr(err)
	}
	if ownerID != t.OwnerID {
		return nil, domain.ErrAccessDenied
	}

	maxDue, err := findMaxDueDate(ctx, tx, t.ID)
	if err != nil {
		return nil, raceOr(err)
	}
	dates := plan(domain.ResumeAfter(maxDue, pgDateToTimePtr(through)))
	if len(dates) == 0 {
		return nil, tx.Commit(ctx)
	}
	last := dates[len(dates)-1]

	root, err := lineageRoot(ctx, tx, t.ID)
	if err != nil {
		return nil, raceOr(err)
	}

	created := make([]*domain.Obligation, 0, len(dates))
	if root == nil {
		first, err := insertObligation(ctx, tx, domain.NewOccurrence(t, dates[0]))
		if err != nil {
			return nil, raceOr(err)
		}
		created = append(created, first)
		root = &first.ID
		dates = dates[1:]
	}

	if len(dates) > 0 {
		batch := &pgx.Batch{}
		for _, due := range dates {
			o := domain.NewOccurrence(t, due)
			o.ParentID = root
			args, err := insertObligationArgs(o)
			if err != nil {
				return nil, err
			}
			batch.Queue(insertObligationSQL, args...)
		}

		br := tx.SendBatch(ctx, batch)
		for range dates {
			o, err := scanObligation(br.QueryRow())
			if err != nil {
				br.Close()
				return nil, raceOr(err)
			}
			created = append(created, o)
		}
		if err := br.Close(); err != nil {
			return nil, raceOr(err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE recurring_templates SET generated_through = $2, updated_at = NOW()
		WHERE id = $1`, t.ID, timeToPgDate(last))
	if err != nil {
		return nil, raceOr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, raceOr(err)
	}
	return created, nil
}

func getObligation(ctx context.Context, q dbtx, ownerID, id int32, forUpdate bool) (*domain.Obligation, error) {
	sql := `SELECT ` + obligationColumns + ` FROM obligations WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	o, err := scanObligation(q.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, err
	}
	if o.OwnerID != ownerID {
		return nil, domain.ErrAccessDenied
	}
	return o, nil
}

func findMaxDueDate(ctx context.Context, q dbtx, templateID int32) (*time.Time, error) {
	var latest pgtype.Date
	if err := q.QueryRow(ctx, `SELECT MAX(due_date) FROM obligations WHERE template_id = $1`, templateID).Scan(&latest); err != nil {
		return nil, err
	}
	return pgDateToTimePtr(latest), nil
}

// lineageRoot resolves the root id of a template's group from its earliest surviving member
func lineageRoot(ctx context.Context, q dbtx, templateID int32) (*int32, error) {
	var root int32
	err := q.QueryRow(ctx, `
		SELECT COALESCE(parent_id, id) FROM obligations
		WHERE template_id = $1
		ORDER BY due_date, id
		LIMIT 1`, templateID).Scan(&root)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &root, nil
}

func insertObligation(ctx context.Context, q dbtx, o *domain.Obligation) (*domain.Obligation, error) {
	args, err := insertObligationArgs(o)
	if err != nil {
		return nil, err
	}
	return scanObligation(q.QueryRow(ctx, insertObligationSQL, args...))
}

func insertObligationArgs(o *domain.Obligation) ([]any, error) {
	amount, err := decimalToPgNumeric(o.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	return []any{
		o.OwnerID, string(o.Kind), int32PtrToPgInt4(o.TemplateID), int32PtrToPgInt4(o.ParentID),
		o.Name, amount, timeToPgDate(o.DueDate), int32PtrToPgInt4(o.CategoryID), stringPtrToPgText(o.Notes),
	}, nil
}

func raceOr(err error) error {
	if isPgError(err, pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected) {
		return fmt.Errorf("%w: %v", domain.ErrGenerationRace, err)
	}
	return err
}

func scanObligation(row pgx.Row) (*domain.Obligation, error) {
	var (
		o          domain.Obligation
		kind       string
		templateID pgtype.Int4
		parentID   pgtype.Int4
		amount     pgtype.Numeric
		dueDate    pgtype.Date
		paidDate   pgtype.Date
		categoryID pgtype.Int4
		notes      pgtype.Text
	)
	err := row.Scan(&o.ID, &o.OwnerID, &kind, &templateID, &parentID, &o.Name, &amount, &dueDate,
		&o.IsPaid, &paidDate, &categoryID, &notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrObligationNotFound
		}
		return nil, err
	}
	o.Kind = domain.Kind(kind)
	o.TemplateID = pgInt4ToInt32Ptr(templateID)
	o.ParentID = pgInt4ToInt32Ptr(parentID)
	o.Amount = pgNumericToDecimal(amount)
	o.DueDate = pgDateToTime(dueDate)
	o.PaidDate = pgDateToTimePtr(paidDate)
	o.CategoryID = pgInt4ToInt32Ptr(categoryID)
	o.Notes = pgTextToStringPtr(notes)
	return &o, nil
}
