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

const ownerColumns = `id, auth0_id, email, name, created_at, updated_at`

// OwnerRepository implements domain.OwnerRepository using PostgreSQL
type OwnerRepository struct {
	pool *pgxpool.Pool
}

// NewOwnerRepository creates a new OwnerRepository
func NewOwnerRepository(pool *pgxpool.Pool) *OwnerRepository {
	return &OwnerRepository{pool: pool}
}

// GetByID retrieves an owner by id
func (r *OwnerRepository) GetByID(ctx context.Context, id int32) (*domain.Owner, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ownerColumns+` FROM owners WHERE id = $1`, id)
	return scanOwner(row)
}

// GetByAuth0ID retrieves an owner by the JWT subject
func (r *OwnerRepository) GetByAuth0ID(ctx context.Context, auth0ID string) (*domain.Owner, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ownerColumns+` FROM owners WHERE auth0_id = $1`, auth0ID)
	return scanOwner(row)
}

// CreateOrGetByAuth0ID inserts the owner on first sight and refreshes email/name afterwards
func (r *OwnerRepository) CreateOrGetByAuth0ID(ctx context.Context, auth0ID, email string, name *string) (*domain.Owner, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO owners (auth0_id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (auth0_id) DO UPDATE
		SET email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE owners.email END,
		    name = COALESCE(EXCLUDED.name, owners.name),
		    updated_at = NOW()
		RETURNING `+ownerColumns, auth0ID, email, stringPtrToPgText(name))
	owner, err := scanOwner(row)
	if err != nil {
		return nil, fmt.Errorf("upsert owner: %w", err)
	}
	return owner, nil
}

func scanOwner(row pgx.Row) (*domain.Owner, error) {
	var (
		o    domain.Owner
		name pgtype.Text
	)
	if err := row.Scan(&o.ID, &o.Auth0ID, &o.Email, &name, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOwnerNotFound
		}
		return nil, err
	}
	o.Name = pgTextToStringPtr(name)
	return &o, nil
}
