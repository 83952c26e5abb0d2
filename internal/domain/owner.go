package domain

import (
	"context"
	"time"
)

// Owner is the authenticated user every record is scoped to
type Owner struct {
	ID        int32     `json:"id"`
	Auth0ID   string    `json:"auth0Id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnerRepository defines the interface for owner persistence operations
type OwnerRepository interface {
	GetByID(ctx context.Context, id int32) (*Owner, error)
	GetByAuth0ID(ctx context.Context, auth0ID string) (*Owner, error)
	CreateOrGetByAuth0ID(ctx context.Context, auth0ID, email string, name *string) (*Owner, error)
}
