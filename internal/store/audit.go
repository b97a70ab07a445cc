package store

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"github.com/erazemk/izposoja/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditFilter narrows ListAudit. Zero fields match everything.
type AuditFilter struct {
	EntityTable   string
	RecordID      int64
	ActorID       int64
	CorrelationID string
	Since         time.Time
	Page
}

// auditRow carries the serialized changes column alongside the record.
type auditRow struct {
	model.AuditRecord
	ChangesJSON string `db:"changes"`
}

// InsertAudit appends rec to the audit log and sets its ID.
func InsertAudit(ctx context.Context, db DBTX, rec *model.AuditRecord) error {
	changes := "{}"
	if len(rec.Changes) > 0 {
		b, err := json.Marshal(rec.Changes)
		if err != nil {
			return fmt.Errorf("encoding audit changes: %w", err)
		}
		changes = string(b)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO audit_log (action, entity_table, actor_id, record_id, description, origin, correlation_id, changes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Action, rec.EntityTable, rec.ActorID, rec.RecordID, rec.Description,
		rec.Origin, rec.CorrelationID, changes, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit record id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListAudit returns audit records oldest first.
func ListAudit(ctx context.Context, db DBTX, f AuditFilter) ([]model.AuditRecord, error) {
	ds := dialect.From("audit_log").
		Select("id", "action", "entity_table", "actor_id", "record_id", "description",
			"origin", "correlation_id", "changes", "created_at").
		Order(goqu.C("id").Asc())
	if f.EntityTable != "" {
		ds = ds.Where(goqu.C("entity_table").Eq(f.EntityTable))
	}
	if f.RecordID != 0 {
		ds = ds.Where(goqu.C("record_id").Eq(f.RecordID))
	}
	if f.ActorID != 0 {
		ds = ds.Where(goqu.C("actor_id").Eq(f.ActorID))
	}
	if f.CorrelationID != "" {
		ds = ds.Where(goqu.C("correlation_id").Eq(f.CorrelationID))
	}
	if !f.Since.IsZero() {
		ds = ds.Where(goqu.C("created_at").Gte(f.Since))
	}

	rows, err := selectAll[auditRow](ctx, db, f.Page.apply(ds))
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}

	out := make([]model.AuditRecord, len(rows))
	for i, row := range rows {
		out[i] = row.AuditRecord
		if row.ChangesJSON != "" && row.ChangesJSON != "{}" {
			if err := json.UnmarshalFromString(row.ChangesJSON, &out[i].Changes); err != nil {
				return nil, fmt.Errorf("decoding audit changes for record %d: %w", row.ID, err)
			}
		}
	}
	return out, nil
}
