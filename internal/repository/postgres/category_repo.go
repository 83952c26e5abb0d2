package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

// CategoryRepository implements domain.CategoryRepository using PostgreSQL
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository creates a new CategoryRepository
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// GetByID retrieves a category, failing with ErrAccessDenied when another owner holds it
func (r *CategoryRepository) GetByID(ctx context.Context, ownerID int32, id int32) (*domain.Category, error) {
	var c domain.Category
	err := r.pool.QueryRow(ctx, `SELECT id, owner_id, name, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.OwnerID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, domain.ErrAccessDenied
	}
	return &c, nil
}

// ListByOwner lists an owner's categories by name
func (r *CategoryRepository) ListByOwner(ctx context.Context, ownerID int32) ([]*domain.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, created_at FROM categories
		WHERE owner_id = $1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}
