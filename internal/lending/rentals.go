package lending

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/izposoja/internal/lifecycle"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/erazemk/izposoja/internal/telemetry"
)

// Rentals tracks custody of items.
type Rentals struct {
	Deps
}

// NewRentals returns a rental engine.
func NewRentals(d Deps) (*Rentals, error) {
	d, err := d.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Rentals{Deps: d}, nil
}

// Get returns a rental by ID.
func (e *Rentals) Get(ctx context.Context, id int64) (*model.Rental, error) {
	r, err := store.GetRental(ctx, e.DB, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, lifecycle.Errorf(lifecycle.CodeNotFound, "rental %d not found", id)
	}
	return r, nil
}

// List returns rentals matching f.
func (e *Rentals) List(ctx context.Context, f store.RentalFilter) ([]model.Rental, error) {
	return store.ListRentals(ctx, e.DB, f)
}

// ActiveForHolder returns the ACTIVE and OVERDUE rentals of holderID.
func (e *Rentals) ActiveForHolder(ctx context.Context, holderID int64) ([]model.Rental, error) {
	return store.ListRentals(ctx, e.DB, store.RentalFilter{
		HolderID: holderID,
		States:   []model.RentalState{model.RentalActive, model.RentalOverdue},
	})
}

// Grant lends an AVAILABLE item directly to holderID without a prior
// reservation. Only staff may grant.
func (e *Rentals) Grant(ctx context.Context, actor Actor, itemID, holderID int64, note string) (*model.Rental, error) {
	ctx, span := e.Tracer.Start(ctx, "rental.grant", trace.WithAttributes(
		attribute.Int64("item", itemID), attribute.Int64("holder", holderID)))
	defer span.End()

	if !actor.Staff() {
		err := lifecycle.Errorf(lifecycle.CodeForbidden, "only staff may grant rentals")
		telemetry.Fail(span, err)
		return nil, err
	}

	var rental *model.Rental
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		holder, err := store.GetActiveUser(ctx, tx, holderID)
		if err != nil {
			return err
		}
		if holder == nil {
			return lifecycle.Errorf(lifecycle.CodeNotFound, "holder %d not found", holderID)
		}

		rental, err = e.start(ctx, tx, itemID, holderID, nil, actor.id(), note, e.Clock.Now())
		return err
	})
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	e.record(ctx, actor, model.ActionRentalGranted, model.TableRentals, rental.ID,
		fmt.Sprintf("Rental %d granted: item %d to user %d, due %s", rental.ID, itemID, holderID, rental.DueAt.Format(time.RFC3339)),
		map[string]any{"state": change(nil, rental.State), "due_at": change(nil, rental.DueAt)})
	return rental, nil
}

// start opens an ACTIVE rental inside tx. With a reservation the item moves
// HELD -> IN_CUSTODY; without one it is claimed from AVAILABLE.
func (e *Rentals) start(ctx context.Context, tx *sql.Tx, itemID, holderID int64, reservationID, grantedBy *int64, note string, now time.Time) (*model.Rental, error) {
	t := lifecycle.StartRental(itemID, holderID, reservationID, grantedBy, note, now, e.Policy)
	if err := applyEffect(ctx, tx, itemID, t.Effect, now); err != nil {
		return nil, err
	}

	rental := t.Rental
	if err := store.InsertRental(ctx, tx, &rental); err != nil {
		return nil, err
	}
	return &rental, nil
}

// Return closes a rental and releases its item. Valid from ACTIVE and OVERDUE.
func (e *Rentals) Return(ctx context.Context, actor Actor, id int64, note string) (*model.Rental, error) {
	ctx, span := e.Tracer.Start(ctx, "rental.return", trace.WithAttributes(attribute.Int64("rental", id)))
	defer span.End()

	now := e.Clock.Now()
	var prev model.RentalState
	next, err := e.transition(ctx, id, func(r model.Rental) (lifecycle.RentalTransition, error) {
		prev = r.State
		return lifecycle.ReturnRental(r, actor.id(), note, now)
	}, now)
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	e.record(ctx, actor, model.ActionRentalReturned, model.TableRentals, next.ID,
		fmt.Sprintf("Rental %d returned (item %d)", next.ID, next.ItemID),
		map[string]any{"state": change(prev, next.State)})
	return next, nil
}

// Extend pushes the due date of a rental by days and clears OVERDUE.
func (e *Rentals) Extend(ctx context.Context, actor Actor, id int64, days int, reason string) (*model.Rental, error) {
	ctx, span := e.Tracer.Start(ctx, "rental.extend", trace.WithAttributes(
		attribute.Int64("rental", id), attribute.Int("days", days)))
	defer span.End()

	var prev model.Rental
	next, err := e.transition(ctx, id, func(r model.Rental) (lifecycle.RentalTransition, error) {
		prev = r
		return lifecycle.ExtendRental(r, days, reason, e.Policy)
	}, e.Clock.Now())
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	changes := map[string]any{"due_at": change(prev.DueAt, next.DueAt)}
	if prev.State != next.State {
		changes["state"] = change(prev.State, next.State)
	}
	e.record(ctx, actor, model.ActionRentalExtended, model.TableRentals, next.ID,
		fmt.Sprintf("Rental %d extended by %d days to %s", next.ID, days, next.DueAt.Format(time.RFC3339)),
		changes)
	return next, nil
}

// MarkLost closes a rental as LOST. The item stays IN_CUSTODY until it is
// recovered through the registry. Only staff may mark a rental lost.
func (e *Rentals) MarkLost(ctx context.Context, actor Actor, id int64, note string) (*model.Rental, error) {
	ctx, span := e.Tracer.Start(ctx, "rental.lost", trace.WithAttributes(attribute.Int64("rental", id)))
	defer span.End()

	if !actor.Staff() {
		err := lifecycle.Errorf(lifecycle.CodeForbidden, "only staff may mark rentals lost")
		telemetry.Fail(span, err)
		return nil, err
	}

	var prev model.RentalState
	next, err := e.transition(ctx, id, func(r model.Rental) (lifecycle.RentalTransition, error) {
		prev = r.State
		return lifecycle.MarkLost(r, note)
	}, e.Clock.Now())
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	e.record(ctx, actor, model.ActionRentalLost, model.TableRentals, next.ID,
		fmt.Sprintf("Rental %d marked lost (item %d)", next.ID, next.ItemID),
		map[string]any{"state": change(prev, next.State)})
	return next, nil
}

// transition loads a rental, decides, writes it back and applies the item
// effect, all in one transaction.
func (e *Rentals) transition(ctx context.Context, id int64, decide func(model.Rental) (lifecycle.RentalTransition, error), now time.Time) (*model.Rental, error) {
	var next model.Rental
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		r, err := store.GetRental(ctx, tx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return lifecycle.Errorf(lifecycle.CodeNotFound, "rental %d not found", id)
		}

		t, err := decide(*r)
		if err != nil {
			return err
		}
		next = t.Rental

		ok, err := store.UpdateRental(ctx, tx, &next, r.State)
		if err != nil {
			return err
		}
		if !ok {
			return lostRace("rental", id, func() error {
				cur, err := store.GetRental(ctx, tx, id)
				if err != nil || cur == nil {
					return err
				}
				_, err = decide(*cur)
				return err
			})
		}

		return applyEffect(ctx, tx, r.ItemID, t.Effect, now)
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}
