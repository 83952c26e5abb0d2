package service

import (
	"context"

	"github.com/craigrbailey/BillPilot-sub000/internal/cache"
	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

// CategoryService handles category lookups
type CategoryService struct {
	repo  domain.CategoryRepository
	cache *cache.Cache
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(repo domain.CategoryRepository, c *cache.Cache) *CategoryService {
	return &CategoryService{repo: repo, cache: c}
}

// ListCategories returns an owner's categories ordered by name
func (s *CategoryService) ListCategories(ctx context.Context, ownerID int32) ([]*domain.Category, error) {
	return cache.ReadThrough(s.cache, cache.Key{OwnerID: ownerID, Kind: cache.KindCategories}, func() ([]*domain.Category, error) {
		categories, err := s.repo.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if categories == nil {
			categories = []*domain.Category{}
		}
		return categories, nil
	})
}

// GetCategory returns one category
func (s *CategoryService) GetCategory(ctx context.Context, ownerID int32, id int32) (*domain.Category, error) {
	return s.repo.GetByID(ctx, ownerID, id)
}
