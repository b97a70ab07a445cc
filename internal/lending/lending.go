// Package lending runs the reservation and rental lifecycles against the
// item registry.
//
// Every mutating operation executes in a single transaction: the current
// record is loaded, the pure transition in package lifecycle decides the
// outcome, and the result is written back with a version compare-and-swap.
// A failed operation rolls back and leaves no trace. One audit record is
// emitted after each successful commit.
package lending

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/izposoja/internal/audit"
	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/lifecycle"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// Actor identifies who performs an operation.
type Actor struct {
	// UserID is zero for the system (sweeps).
	UserID int64
	Role   string
	// Origin is the client address of the request.
	Origin string
	// RequestID correlates audit records with a request or sweep run.
	RequestID string
}

// System returns the actor used by sweeps.
func System(runID string) Actor {
	return Actor{Origin: "sweep", RequestID: runID}
}

// Staff reports whether the actor may act on other holders' records.
func (a Actor) Staff() bool {
	return model.IsStaff(a.Role)
}

func (a Actor) id() *int64 {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// Deps are the collaborators shared by the engines.
type Deps struct {
	DB     *sql.DB
	Policy lifecycle.Policy
	Clock  clock.Clock
	Audit  audit.Sink
	Logger *slog.Logger
	Tracer trace.Tracer
}

func (d Deps) withDefaults() (Deps, error) {
	if d.DB == nil {
		return d, errors.New("lending: database is required")
	}
	if err := d.Policy.Validate(); err != nil {
		return d, err
	}
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Audit == nil {
		d.Audit = audit.Discard
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer("github.com/erazemk/izposoja/internal/lending")
	}
	return d, nil
}

// record emits one audit record for a committed operation.
func (d Deps) record(ctx context.Context, actor Actor, action, table string, id int64, description string, changes map[string]any) {
	d.Audit.Record(ctx, model.AuditRecord{
		Action:        action,
		EntityTable:   table,
		ActorID:       actor.id(),
		RecordID:      id,
		Description:   description,
		Origin:        actor.Origin,
		CorrelationID: actor.RequestID,
		Changes:       changes,
		CreatedAt:     d.Clock.Now(),
	})
}

// applyEffect performs the registry move a transition asked for.
func applyEffect(ctx context.Context, tx store.DBTX, itemID int64, effect lifecycle.ItemEffect, now time.Time) error {
	var err error
	switch effect {
	case lifecycle.EffectClaimHeld:
		_, err = store.ClaimItem(ctx, tx, itemID, model.ItemHeld, now)
	case lifecycle.EffectClaimCustody:
		_, err = store.ClaimItem(ctx, tx, itemID, model.ItemInCustody, now)
	case lifecycle.EffectTransfer:
		_, err = store.TransferItem(ctx, tx, itemID, model.ItemHeld, model.ItemInCustody, now)
	case lifecycle.EffectRelease:
		_, err = store.ReleaseItem(ctx, tx, itemID, now)
	}
	return err
}

// change describes one field transition in an audit record.
func change(from, to any) map[string]any {
	return map[string]any{"old": from, "new": to}
}

// lostRace builds the error for a compare-and-swap that matched no row:
// the record was changed after it was read. decide re-runs the transition
// on the fresh record so the caller sees the definitive reason.
func lostRace(kind string, id int64, decide func() error) error {
	if err := decide(); err != nil {
		return err
	}
	return lifecycle.Errorf(lifecycle.CodeInvalidStateTransition, "%s %d was modified concurrently", kind, id)
}
