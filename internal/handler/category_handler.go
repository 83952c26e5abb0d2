package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/craigrbailey/BillPilot-sub000/internal/middleware"
	"github.com/craigrbailey/BillPilot-sub000/internal/service"
)

// CategoryHandler handles category HTTP requests
type CategoryHandler struct {
	categories *service.CategoryService
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categories *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID        int32  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

// ListCategories handles GET /api/v1/categories
func (h *CategoryHandler) ListCategories(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == 0 {
		return NewUnauthorizedError(c, "Owner required")
	}

	categories, err := h.categories.ListCategories(c.Request().Context(), ownerID)
	if err != nil {
		return handleServiceError(c, err, ownerID, "list categories")
	}

	response := make([]CategoryResponse, len(categories))
	for i, cat := range categories {
		response[i] = CategoryResponse{
			ID:        cat.ID,
			Name:      cat.Name,
			CreatedAt: cat.CreatedAt.Format(time.RFC3339),
		}
	}
	return c.JSON(http.StatusOK, response)
}
