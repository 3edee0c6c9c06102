package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-hall-reservation/internal/model"
	"github.com/iliyamo/event-hall-reservation/internal/repository"
)

// CategoryHandler exposes the host category catalogue.  Reads are
// public; mutations are admin-only via the router.
type CategoryHandler struct {
	Categories *repository.CategoryRepo
}

func NewCategoryHandler(r *repository.CategoryRepo) *CategoryHandler {
	if r == nil {
		panic("nil repository passed to NewCategoryHandler")
	}
	return &CategoryHandler{Categories: r}
}

type categoryReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type categoryResp struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCategoryResp(c *model.HostCategory) categoryResp {
	return categoryResp{ID: c.ID, Name: c.Name, Description: c.Description, CreatedAt: c.CreatedAt}
}

// Create handles POST /v1/admin/categories.
func (h *CategoryHandler) Create(c echo.Context) error {
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	cat := &model.HostCategory{Name: req.Name, Description: strings.TrimSpace(req.Description)}
	if err := h.Categories.Create(c.Request().Context(), cat); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create category failed"})
	}
	return c.JSON(http.StatusCreated, toCategoryResp(cat))
}

// List handles GET /v1/categories (public) with pagination.
func (h *CategoryHandler) List(c echo.Context) error {
	offset, limit := pagination(c)
	ctx := c.Request().Context()
	cats, err := h.Categories.List(ctx, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list categories failed"})
	}
	total, err := h.Categories.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count categories failed"})
	}
	out := make([]categoryResp, 0, len(cats))
	for i := range cats {
		out = append(out, toCategoryResp(&cats[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": out, "total": total})
}

// Get handles GET /v1/categories/:id.
func (h *CategoryHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category id"})
	}
	cat, err := h.Categories.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrCategoryNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load category failed"})
	}
	return c.JSON(http.StatusOK, toCategoryResp(cat))
}

// Update handles PUT /v1/admin/categories/:id.
func (h *CategoryHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category id"})
	}
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	cat := &model.HostCategory{ID: id, Name: req.Name, Description: strings.TrimSpace(req.Description)}
	if err := h.Categories.Update(c.Request().Context(), cat); err != nil {
		if err == repository.ErrCategoryNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update category failed"})
	}
	return c.JSON(http.StatusOK, toCategoryResp(cat))
}

// Delete handles DELETE /v1/admin/categories/:id.
func (h *CategoryHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category id"})
	}
	if err := h.Categories.Delete(c.Request().Context(), id); err != nil {
		if err == repository.ErrCategoryNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete category failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
