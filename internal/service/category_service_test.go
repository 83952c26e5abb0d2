package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigrbailey/BillPilot-sub000/internal/cache"
	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/testutil"
)

func TestListCategories(t *testing.T) {
	repo := testutil.NewMockCategoryRepository()
	repo.AddCategory(1, "Utilities")
	repo.AddCategory(1, "Housing")
	repo.AddCategory(2, "Other")
	c := cache.New(10, time.Minute)
	service := NewCategoryService(repo, c)

	categories, err := service.ListCategories(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Housing", categories[0].Name)
	assert.Equal(t, "Utilities", categories[1].Name)

	_, err = service.ListCategories(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Stats().Hits)

	empty, err := service.ListCategories(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestGetCategory(t *testing.T) {
	repo := testutil.NewMockCategoryRepository()
	cat := repo.AddCategory(1, "Utilities")
	service := NewCategoryService(repo, nil)

	got, err := service.GetCategory(context.Background(), 1, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Utilities", got.Name)

	_, err = service.GetCategory(context.Background(), 2, cat.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}
