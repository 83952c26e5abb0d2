package domain

import (
	"context"
	"time"
)

// UncategorizedLabel is used for obligations without a category
const UncategorizedLabel = "Uncategorized"

type Category struct {
	ID        int32     `json:"id"`
	OwnerID   int32     `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type CategoryRepository interface {
	GetByID(ctx context.Context, ownerID int32, id int32) (*Category, error)
	ListByOwner(ctx context.Context, ownerID int32) ([]*Category, error)
}
