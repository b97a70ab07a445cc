package api

import (
	"net/http"

	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// ReservationsHandler handles reservation endpoints.
type ReservationsHandler struct {
	Reservations *lending.Reservations
}

type createReservationRequest struct {
	ItemID   int64  `json:"item_id"`
	HolderID int64  `json:"holder_id"`
	Note     string `json:"note"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Create handles POST /api/reservations. Holder defaults to the caller.
func (h *ReservationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id required")
		return
	}

	res, err := h.Reservations.Create(r.Context(), actorFrom(r), req.ItemID, req.HolderID, req.Note)
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}

// List handles GET /api/reservations. Plain users only see their own.
func (h *ReservationsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := reservationFilter(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid filter")
		return
	}
	if claims := GetClaims(r.Context()); !model.IsStaff(claims.Role) {
		f.HolderID = claims.UserID
	}

	list, err := h.Reservations.List(r.Context(), f)
	if err != nil {
		engineError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Reservation{}
	}
	jsonResponse(w, http.StatusOK, list)
}

// My handles GET /api/reservations/my: the caller's open reservations.
func (h *ReservationsHandler) My(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reservations.ActiveForHolder(r.Context(), GetClaims(r.Context()).UserID)
	if err != nil {
		engineError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Reservation{}
	}
	jsonResponse(w, http.StatusOK, list)
}

// Get handles GET /api/reservations/{id}.
func (h *ReservationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	res, err := h.Reservations.Get(r.Context(), id)
	if err != nil {
		engineError(w, r, err)
		return
	}
	claims := GetClaims(r.Context())
	if !model.IsStaff(claims.Role) && res.HolderID != claims.UserID {
		jsonError(w, http.StatusNotFound, "reservation not found")
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Confirm handles POST /api/reservations/{id}/confirm and responds with
// the rental that took over the hold.
func (h *ReservationsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rental, err := h.Reservations.Confirm(r.Context(), actorFrom(r), id, req.Note)
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, rental)
}

// Cancel handles POST /api/reservations/{id}/cancel.
func (h *ReservationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Reservations.Cancel(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		engineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Expire handles POST /api/reservations/expire.
func (h *ReservationsHandler) Expire(w http.ResponseWriter, r *http.Request) {
	n := h.Reservations.SweepExpired(r.Context())
	jsonResponse(w, http.StatusOK, map[string]int{"expired": n})
}

func reservationFilter(r *http.Request) (store.ReservationFilter, bool) {
	var f store.ReservationFilter
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
		if !model.ValidReservationState(s) {
			return f, false
		}
		f.States = append(f.States, model.ReservationState(s))
	}
	return f, true
}
