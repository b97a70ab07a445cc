package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/izposoja/internal/audit"
	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// AuditHandler serves the audit trail (admin only).
type AuditHandler struct {
	DB *sql.DB
}

// List handles GET /api/audit.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.AuditFilter{
		EntityTable:   q.Get("table"),
		CorrelationID: q.Get("correlation_id"),
	}
	var ok bool
	if f.RecordID, ok = queryInt(r, "record_id"); !ok {
		jsonError(w, http.StatusBadRequest, "invalid record_id")
		return
	}
	if f.ActorID, ok = queryInt(r, "actor_id"); !ok {
		jsonError(w, http.StatusBadRequest, "invalid actor_id")
		return
	}
	if f.Page, ok = queryPage(r); !ok {
		jsonError(w, http.StatusBadRequest, "invalid paging parameters")
		return
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		f.Since = t
	}

	records, err := store.ListAudit(r.Context(), h.DB, f)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list audit records")
		return
	}
	if records == nil {
		records = []model.AuditRecord{}
	}
	jsonResponse(w, http.StatusOK, records)
}

// accountAudit records account and session operations. The lending engines
// audit their own operations.
type accountAudit struct {
	sink  audit.Sink
	clock clock.Clock
}

func (a accountAudit) record(r *http.Request, actor lending.Actor, action string, userID int64, description string, changes map[string]any) {
	if a.sink == nil {
		return
	}
	rec := model.AuditRecord{
		Action:        action,
		EntityTable:   model.TableUsers,
		RecordID:      userID,
		Description:   description,
		Origin:        actor.Origin,
		CorrelationID: actor.RequestID,
		Changes:       changes,
		CreatedAt:     a.clock.Now(),
	}
	if actor.UserID != 0 {
		id := actor.UserID
		rec.ActorID = &id
	}
	a.sink.Record(r.Context(), rec)
}

// SweepHandler triggers a sweep pass on demand.
type SweepHandler struct {
	Sweeper *lending.Sweeper
}

// Run handles POST /api/sweep.
func (h *SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.Sweeper.RunOnce(r.Context()))
}

// Health handles GET /health.
func Health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
