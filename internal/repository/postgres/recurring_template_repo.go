package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

const templateColumns = `id, owner_id, kind, name, expected_amount, frequency, start_date, category_id, notes, generated_through, created_at, updated_at`

// RecurringTemplateRepository implements domain.RecurringTemplateRepository using PostgreSQL
type RecurringTemplateRepository struct {
	pool *pgxpool.Pool
}

// NewRecurringTemplateRepository creates a new RecurringTemplateRepository
func NewRecurringTemplateRepository(pool *pgxpool.Pool) *RecurringTemplateRepository {
	return &RecurringTemplateRepository{pool: pool}
}

// Create inserts a payee or income source
func (r *RecurringTemplateRepository) Create(ctx context.Context, t *domain.RecurringTemplate) (*domain.RecurringTemplate, error) {
	amount, err := decimalToPgNumeric(t.ExpectedAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO recurring_templates (owner_id, kind, name, expected_amount, frequency, start_date, category_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+templateColumns,
		t.OwnerID, string(t.Kind), t.Name, amount, string(t.Frequency), timeToPgDate(t.StartDate),
		int32PtrToPgInt4(t.CategoryID), stringPtrToPgText(t.Notes))
	return scanTemplate(row)
}

// GetByID retrieves a template, failing with ErrAccessDenied when another owner holds it
func (r *RecurringTemplateRepository) GetByID(ctx context.Context, ownerID int32, id int32) (*domain.RecurringTemplate, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, domain.ErrAccessDenied
	}
	return t, nil
}

// ListByOwner lists an owner's templates; an empty kind lists both kinds
func (r *RecurringTemplateRepository) ListByOwner(ctx context.Context, ownerID int32, kind domain.Kind) ([]*domain.RecurringTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+` FROM recurring_templates
		WHERE owner_id = $1 AND ($2::text = '' OR kind = $2::text)
		ORDER BY name, id`, ownerID, string(kind))
	if err != nil {
		return nil, err
	}
	return collectTemplates(rows)
}

// ListAllRecurring lists every template across owners whose frequency repeats
func (r *RecurringTemplateRepository) ListAllRecurring(ctx context.Context) ([]*domain.RecurringTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+` FROM recurring_templates
		WHERE frequency <> $1
		ORDER BY owner_id, id`, string(domain.FrequencyOneTime))
	if err != nil {
		return nil, err
	}
	return collectTemplates(rows)
}

// Delete removes a template; its obligations and their ledger entries cascade
func (r *RecurringTemplateRepository) Delete(ctx context.Context, ownerID int32, id int32) error {
	if _, err := r.GetByID(ctx, ownerID, id); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM recurring_templates WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

func collectTemplates(rows pgx.Rows) ([]*domain.RecurringTemplate, error) {
	defer rows.Close()
	var result []*domain.RecurringTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTemplate(row pgx.Row) (*domain.RecurringTemplate, error) {
	var (
		t          domain.RecurringTemplate
		kind       string
		frequency  string
		amount     pgtype.Numeric
		startDate  pgtype.Date
		categoryID pgtype.Int4
		notes      pgtype.Text
		through    pgtype.Date
	)
	err := row.Scan(&t.ID, &t.OwnerID, &kind, &t.Name, &amount, &frequency, &startDate,
		&categoryID, &notes, &through, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, err
	}
	t.Kind = domain.Kind(kind)
	t.Frequency = domain.Frequency(frequency)
	t.ExpectedAmount = pgNumericToDecimal(amount)
	t.StartDate = pgDateToTime(startDate)
	t.CategoryID = pgInt4ToInt32Ptr(categoryID)
	t.Notes = pgTextToStringPtr(notes)
	t.GeneratedThrough = pgDateToTimePtr(through)
	return &t, nil
}
