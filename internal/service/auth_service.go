package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

// AuthService handles authentication-related business logic
type AuthService struct {
	ownerRepo domain.OwnerRepository
}

// NewAuthService creates a new AuthService
func NewAuthService(ownerRepo domain.OwnerRepository) *AuthService {
	return &AuthService{ownerRepo: ownerRepo}
}

// AuthResult represents the result of an authentication operation
type AuthResult struct {
	Owner      *domain.Owner
	IsNewOwner bool
}

// AuthenticateOwner handles the authentication flow after the Auth0 callback.
// The owner row is created on first login and its email and name refreshed afterwards.
func (s *AuthService) AuthenticateOwner(ctx context.Context, auth0ID, email string, name *string) (*AuthResult, error) {
	auth0ID = strings.TrimSpace(auth0ID)
	if auth0ID == "" {
		return nil, domain.ErrInvalidInput
	}

	_, lookupErr := s.ownerRepo.GetByAuth0ID(ctx, auth0ID)
	isNew := lookupErr != nil

	owner, err := s.ownerRepo.CreateOrGetByAuth0ID(ctx, auth0ID, strings.TrimSpace(email), name)
	if err != nil {
		log.Error().Err(err).Str("auth0_id", auth0ID).Msg("Failed to create or get owner")
		return nil, err
	}

	if isNew {
		log.Info().Int32("owner_id", owner.ID).Msg("Created new owner")
	} else {
		log.Info().Int32("owner_id", owner.ID).Msg("Existing owner authenticated")
	}
	return &AuthResult{Owner: owner, IsNewOwner: isNew}, nil
}

// GetOwnerByID retrieves an owner by their ID
func (s *AuthService) GetOwnerByID(ctx context.Context, id int32) (*domain.Owner, error) {
	return s.ownerRepo.GetByID(ctx, id)
}

// OwnerIDByAuth0ID resolves the owner id behind a token subject
func (s *AuthService) OwnerIDByAuth0ID(ctx context.Context, auth0ID string) (int32, error) {
	owner, err := s.ownerRepo.GetByAuth0ID(ctx, auth0ID)
	if err != nil {
		return 0, err
	}
	return owner.ID, nil
}
