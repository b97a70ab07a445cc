package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// CategoriesHandler handles item category endpoints.
type CategoriesHandler struct {
	DB       *sql.DB
	Registry *lending.Registry
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

// List handles GET /api/categories. Staff may pass inactive=true to see
// deleted categories as well.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := queryPage(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid paging parameters")
		return
	}
	inactive := r.URL.Query().Get("inactive") == "true" && actorFrom(r).Staff()

	categories, err := store.ListCategories(r.Context(), h.DB, inactive, page)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []model.CategoryCount{}
	}
	jsonResponse(w, http.StatusOK, categories)
}

// Get handles GET /api/categories/{id}.
func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	c, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get category")
		return
	}
	if c == nil || (!c.Active && !actorFrom(r).Staff()) {
		jsonError(w, http.StatusNotFound, "category not found")
		return
	}

	jsonResponse(w, http.StatusOK, c)
}

// Create handles POST /api/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Registry.CreateCategory(r.Context(), actorFrom(r), lending.CategoryDetails{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

// Update handles PUT /api/categories/{id}.
func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Registry.UpdateCategory(r.Context(), actorFrom(r), id, lending.CategoryDetails{
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
	})
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Delete handles DELETE /api/categories/{id}.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := h.Registry.DeleteCategory(r.Context(), actorFrom(r), id); err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "category deleted"})
}
