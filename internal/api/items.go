package api

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"

	"github.com/erazemk/izposoja/internal/imaging"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// maxUpload bounds an item photo upload.
const maxUpload = 5 << 20

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	DB           *sql.DB
	Registry     *lending.Registry
	Reservations *lending.Reservations
	Rentals      *lending.Rentals
	Photos       imaging.Normalizer
}

type itemRequest struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	SerialNumber string         `json:"serial_number"`
	CategoryID   *int64         `json:"category_id"`
	Metadata     model.Metadata `json:"metadata"`
}

func (req itemRequest) details() lending.ItemDetails {
	return lending.ItemDetails{
		Name:         req.Name,
		Description:  req.Description,
		SerialNumber: req.SerialNumber,
		CategoryID:   req.CategoryID,
		Metadata:     req.Metadata,
	}
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")
	if state != "" && !model.ValidItemState(state) {
		jsonError(w, http.StatusBadRequest, "invalid state")
		return
	}
	page, ok := queryPage(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid paging parameters")
		return
	}
	category, ok := queryInt(r, "category_id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category_id")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, store.ItemFilter{
		State:      model.ItemState(state),
		ActiveOnly: q.Get("active") == "true",
		CategoryID: category,
		Page:       page,
	})
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Registry.Create(r.Context(), actorFrom(r), req.details())
	if err != nil {
		engineError(w, r, err)
		return
	}

	slog.Info("item created", "user", GetClaims(r.Context()).Username, "item", item.ID, "serial", item.SerialNumber)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// BySerial handles GET /api/serials/{serial}.
func (h *ItemsHandler) BySerial(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItemBySerial(r.Context(), h.DB, r.PathValue("serial"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}. Only descriptive fields change here;
// availability moves through the lending endpoints.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Registry.Update(r.Context(), actorFrom(r), id, req.details())
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// SetActive handles PUT /api/items/{id}/active.
func (h *ItemsHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil || req.Active == nil {
		jsonError(w, http.StatusBadRequest, "active flag required")
		return
	}

	item, err := h.Registry.SetActive(r.Context(), actorFrom(r), id, *req.Active)
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Withdraw handles POST /api/items/{id}/withdraw.
func (h *ItemsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Registry.Withdraw)
}

// Restore handles POST /api/items/{id}/restore.
func (h *ItemsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Registry.Restore)
}

// Recover handles POST /api/items/{id}/recover.
func (h *ItemsHandler) Recover(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Registry.Recover)
}

type registryOp func(ctx context.Context, actor lending.Actor, id int64) (*model.Item, error)

func (h *ItemsHandler) move(w http.ResponseWriter, r *http.Request, op registryOp) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := op(r.Context(), actorFrom(r), id)
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	photo, err := h.Photos.Normalize(data)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image must be JPEG, PNG, or WebP")
		return
	}

	if _, err := h.Registry.SetImage(r.Context(), actorFrom(r), id, photo.Data, photo.MIME); err != nil {
		engineError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "image uploaded",
		"width":   photo.Width,
		"height":  photo.Height,
	})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// GetHistory handles GET /api/items/{id}/history: every reservation and
// rental that ever referenced the item, newest first.
func (h *ItemsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	reservations, err := h.Reservations.List(r.Context(), store.ReservationFilter{ItemID: id})
	if err != nil {
		engineError(w, r, err)
		return
	}
	rentals, err := h.Rentals.List(r.Context(), store.RentalFilter{ItemID: id})
	if err != nil {
		engineError(w, r, err)
		return
	}
	if reservations == nil {
		reservations = []model.Reservation{}
	}
	if rentals == nil {
		rentals = []model.Rental{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"reservations": reservations,
		"rentals":      rentals,
	})
}
