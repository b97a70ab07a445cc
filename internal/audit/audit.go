// Package audit delivers one record per state-changing lending operation.
//
// Sinks are fire-and-forget: Record never returns an error, and a failure
// to persist a record is logged rather than surfaced to the operation that
// produced it.
package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// Sink receives audit records.
type Sink interface {
	Record(ctx context.Context, rec model.AuditRecord)
}

// SQLSink appends records to the audit_log table.
type SQLSink struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// NewSQLSink returns a sink writing to db. A nil logger uses slog.Default().
func NewSQLSink(db *sql.DB, logger *slog.Logger) *SQLSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLSink{DB: db, Logger: logger}
}

// Record implements Sink.
func (s *SQLSink) Record(ctx context.Context, rec model.AuditRecord) {
	// The record outlives a canceled request.
	ctx = context.WithoutCancel(ctx)
	if err := store.InsertAudit(ctx, s.DB, &rec); err != nil {
		s.Logger.Error("audit write failed",
			"action", rec.Action, "table", rec.EntityTable, "record", rec.RecordID, "error", err)
	}
}

// LogSink writes records as structured log lines.
type LogSink struct {
	Logger *slog.Logger
}

// Record implements Sink.
func (s LogSink) Record(ctx context.Context, rec model.AuditRecord) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"action", rec.Action,
		"table", rec.EntityTable,
		"record", rec.RecordID,
	}
	if rec.ActorID != nil {
		attrs = append(attrs, "actor", *rec.ActorID)
	} else {
		attrs = append(attrs, "actor", "system")
	}
	if rec.CorrelationID != "" {
		attrs = append(attrs, "correlation", rec.CorrelationID)
	}
	logger.InfoContext(ctx, rec.Description, attrs...)
}

// Multi fans a record out to every sink in order.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, rec model.AuditRecord) {
	for _, s := range m {
		s.Record(ctx, rec)
	}
}

// Discard drops every record.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(context.Context, model.AuditRecord) {}

// Memory keeps records in memory. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records []model.AuditRecord
}

// Record implements Sink.
func (m *Memory) Record(_ context.Context, rec model.AuditRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Records returns a copy of everything recorded so far.
func (m *Memory) Records() []model.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuditRecord(nil), m.records...)
}

// Actions returns the action of every record in order.
func (m *Memory) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.records))
	for i, r := range m.records {
		out[i] = r.Action
	}
	return out
}
