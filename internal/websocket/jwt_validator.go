package websocket

import (
	"context"
	"errors"

	"github.com/auth0/go-jwt-middleware/v2/validator"
)

var (
	// ErrInvalidToken is returned when JWT validation fails
	ErrInvalidToken = errors.New("invalid token")
	// ErrOwnerNotFound is returned when the token's subject has no owner yet
	ErrOwnerNotFound = errors.New("owner not found")
)

// TokenValidator checks a raw access token. *validator.Validator satisfies it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (any, error)
}

// OwnerLookup resolves the owner id for an Auth0 subject
type OwnerLookup interface {
	OwnerIDByAuth0ID(ctx context.Context, auth0ID string) (int32, error)
}

// OwnerTokenValidator turns a handshake token into the owner whose events the connection receives
type OwnerTokenValidator struct {
	tokens TokenValidator
	owners OwnerLookup
}

func NewOwnerTokenValidator(tokens TokenValidator, owners OwnerLookup) *OwnerTokenValidator {
	return &OwnerTokenValidator{tokens: tokens, owners: owners}
}

// ValidateToken validates the token and returns the owner it belongs to
func (v *OwnerTokenValidator) ValidateToken(ctx context.Context, token string) (int32, error) {
	claims, err := v.tokens.ValidateToken(ctx, token)
	if err != nil {
		return 0, ErrInvalidToken
	}
	validated, ok := claims.(*validator.ValidatedClaims)
	if !ok || validated.RegisteredClaims.Subject == "" {
		return 0, ErrInvalidToken
	}

	ownerID, err := v.owners.OwnerIDByAuth0ID(ctx, validated.RegisteredClaims.Subject)
	if err != nil {
		return 0, ErrOwnerNotFound
	}
	return ownerID, nil
}
