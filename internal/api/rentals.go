package api

import (
	"net/http"

	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// RentalsHandler handles rental endpoints.
type RentalsHandler struct {
	Rentals *lending.Rentals
}

type grantRequest struct {
	ItemID   int64  `json:"item_id"`
	HolderID int64  `json:"holder_id"`
	Note     string `json:"note"`
}

type extendRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

// Grant handles POST /api/rentals: a rental without a prior reservation.
func (h *RentalsHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID <= 0 || req.HolderID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id and holder_id required")
		return
	}

	rental, err := h.Rentals.Grant(r.Context(), actorFrom(r), req.ItemID, req.HolderID, req.Note)
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, rental)
}

// List handles GET /api/rentals. Plain users only see their own.
func (h *RentalsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := rentalFilter(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid filter")
		return
	}
	if claims := GetClaims(r.Context()); !model.IsStaff(claims.Role) {
		f.HolderID = claims.UserID
	}

	list, err := h.Rentals.List(r.Context(), f)
	if err != nil {
		engineError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Rental{}
	}
	jsonResponse(w, http.StatusOK, list)
}

// My handles GET /api/rentals/my: the caller's open rentals.
func (h *RentalsHandler) My(w http.ResponseWriter, r *http.Request) {
	list, err := h.Rentals.ActiveForHolder(r.Context(), GetClaims(r.Context()).UserID)
	if err != nil {
		engineError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Rental{}
	}
	jsonResponse(w, http.StatusOK, list)
}

// Get handles GET /api/rentals/{id}.
func (h *RentalsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid rental id")
		return
	}

	rental, err := h.Rentals.Get(r.Context(), id)
	if err != nil {
		engineError(w, r, err)
		return
	}
	claims := GetClaims(r.Context())
	if !model.IsStaff(claims.Role) && rental.HolderID != claims.UserID {
		jsonError(w, http.StatusNotFound, "rental not found")
		return
	}
	jsonResponse(w, http.StatusOK, rental)
}

// Return handles POST /api/rentals/{id}/return.
func (h *RentalsHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid rental id")
		return
	}

	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rental, err := h.Rentals.Return(r.Context(), actorFrom(r), id, req.Note)
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, rental)
}

// Extend handles POST /api/rentals/{id}/extend.
func (h *RentalsHandler) Extend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid rental id")
		return
	}

	var req extendRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rental, err := h.Rentals.Extend(r.Context(), actorFrom(r), id, req.Days, req.Reason)
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, rental)
}

// Lost handles POST /api/rentals/{id}/lost.
func (h *RentalsHandler) Lost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid rental id")
		return
	}

	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rental, err := h.Rentals.MarkLost(r.Context(), actorFrom(r), id, req.Note)
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, rental)
}

// Overdue handles POST /api/rentals/overdue.
func (h *RentalsHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	n := h.Rentals.SweepOverdue(r.Context())
	jsonResponse(w, http.StatusOK, map[string]int{"overdue": n})
}

func rentalFilter(r *http.Request) (store.RentalFilter, bool) {
	var f store.RentalFilter
	var ok bool
	if f.ItemID, ok = queryInt(r, "item_id"); !ok {
		return f, false
	}
	if f.HolderID, ok = queryInt(r, "holder_id"); !ok {
		return f, false
	}
	if f.Page, ok = queryPage(r); !ok {
		return f, false
	}
	for _, s := range r.URL.Query()["state"] {
		if !model.ValidRentalState(s) {
			return f, false
		}
		f.States = append(f.States, model.RentalState(s))
	}
	return f, true
}
