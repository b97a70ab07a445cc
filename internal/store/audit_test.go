package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

func TestInsertAndListAudit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	actor := int64(3)
	rec := &model.AuditRecord{
		Action:      model.ActionRentalExtended,
		EntityTable: model.TableRentals,
		ActorID:     &actor,
		RecordID:    11,
		Description: "extended 2 days",
		Origin:      "127.0.0.1",
		Changes: map[string]any{
			"due_at": map[string]any{"old": "2026-02-10", "new": "2026-02-12"},
		},
		CreatedAt: now,
	}
	require.NoError(t, InsertAudit(ctx, database, rec))
	require.NotZero(t, rec.ID)

	system := &model.AuditRecord{
		Action:        model.ActionRentalOverdue,
		EntityTable:   model.TableRentals,
		RecordID:      12,
		CorrelationID: "run-1",
		CreatedAt:     now,
	}
	require.NoError(t, InsertAudit(ctx, database, system))

	all, err := ListAudit(ctx, database, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	got := all[0]
	assert.Equal(t, model.ActionRentalExtended, got.Action)
	require.NotNil(t, got.ActorID)
	assert.Equal(t, actor, *got.ActorID)
	assert.Equal(t, "127.0.0.1", got.Origin)
	due, ok := got.Changes["due_at"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2026-02-12", due["new"])

	assert.Nil(t, all[1].ActorID, "system actions have no actor")
	assert.Empty(t, all[1].Changes)

	byRun, err := ListAudit(ctx, database, AuditFilter{CorrelationID: "run-1"})
	require.NoError(t, err)
	require.Len(t, byRun, 1)
	assert.Equal(t, int64(12), byRun[0].RecordID)

	byRecord, err := ListAudit(ctx, database, AuditFilter{EntityTable: model.TableRentals, RecordID: 11})
	require.NoError(t, err)
	assert.Len(t, byRecord, 1)
}
