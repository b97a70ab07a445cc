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

// Reservations manages short holds on items. Confirmed reservations are
// handed off to the rental engine.
type Reservations struct {
	Deps
	rentals *Rentals
}

// NewReservations returns a reservation engine that converts into rentals.
func NewReservations(d Deps, rentals *Rentals) (*Reservations, error) {
	d, err := d.withDefaults()
	if err != nil {
		return nil, err
	}
	if rentals == nil {
		return nil, fmt.Errorf("lending: rental engine is required")
	}
	return &Reservations{Deps: d, rentals: rentals}, nil
}

// Get returns a reservation by ID.
func (e *Reservations) Get(ctx context.Context, id int64) (*model.Reservation, error) {
	r, err := store.GetReservation(ctx, e.DB, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, lifecycle.Errorf(lifecycle.CodeNotFound, "reservation %d not found", id)
	}
	return r, nil
}

// List returns reservations matching f.
func (e *Reservations) List(ctx context.Context, f store.ReservationFilter) ([]model.Reservation, error) {
	return store.ListReservations(ctx, e.DB, f)
}

// ActiveForHolder returns the OPEN reservations of holderID.
func (e *Reservations) ActiveForHolder(ctx context.Context, holderID int64) ([]model.Reservation, error) {
	return store.ListReservations(ctx, e.DB, store.ReservationFilter{
		HolderID: holderID,
		States:   []model.ReservationState{model.ReservationOpen},
	})
}

// Create places a hold on itemID for holderID. A zero holderID means the
// actor; only staff may reserve on behalf of someone else.
func (e *Reservations) Create(ctx context.Context, actor Actor, itemID, holderID int64, note string) (*model.Reservation, error) {
	if holderID == 0 {
		holderID = actor.UserID
	}
	ctx, span := e.Tracer.Start(ctx, "reservation.create", trace.WithAttributes(
		attribute.Int64("item", itemID), attribute.Int64("holder", holderID)))
	defer span.End()

	if holderID != actor.UserID && !actor.Staff() {
		err := lifecycle.Errorf(lifecycle.CodeForbidden, "cannot reserve on behalf of user %d", holderID)
		telemetry.Fail(span, err)
		return nil, err
	}

	now := e.Clock.Now()
	var res model.Reservation
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		holder, err := store.GetActiveUser(ctx, tx, holderID)
		if err != nil {
			return err
		}
		if holder == nil {
			return lifecycle.Errorf(lifecycle.CodeNotFound, "holder %d not found", holderID)
		}

		item, err := store.GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return lifecycle.Errorf(lifecycle.CodeNotFound, "item %d not found", itemID)
		}

		dup, err := store.HasOpenReservation(ctx, tx, itemID, holderID)
		if err != nil {
			return err
		}

		t, err := lifecycle.OpenReservation(*item, holderID, dup, note, now, e.Policy)
		if err != nil {
			return err
		}
		if err := applyEffect(ctx, tx, itemID, t.Effect, now); err != nil {
			return err
		}

		res = t.Reservation
		return store.InsertReservation(ctx, tx, &res)
	})
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	e.record(ctx, actor, model.ActionReservationCreated, model.TableReservations, res.ID,
		fmt.Sprintf("Reservation %d created: item %d held for user %d until %s", res.ID, itemID, holderID, res.ExpiresAt.Format(time.RFC3339)),
		map[string]any{"state": change(nil, res.State), "expires_at": change(nil, res.ExpiresAt)})
	return &res, nil
}

// Confirm converts an OPEN reservation into an ACTIVE rental. The item moves
// HELD -> IN_CUSTODY without passing through AVAILABLE. A confirm at or
// after expires-at fails with ReservationExpired even before the sweep runs.
func (e *Reservations) Confirm(ctx context.Context, actor Actor, id int64, note string) (*model.Rental, error) {
	ctx, span := e.Tracer.Start(ctx, "reservation.confirm", trace.WithAttributes(attribute.Int64("reservation", id)))
	defer span.End()

	now := e.Clock.Now()
	var rental *model.Rental
	var next model.Reservation
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		r, err := store.GetReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return lifecycle.Errorf(lifecycle.CodeNotFound, "reservation %d not found", id)
		}

		t, err := lifecycle.ConfirmReservation(*r, now)
		if err != nil {
			return err
		}

		rental, err = e.rentals.start(ctx, tx, r.ItemID, r.HolderID, &r.ID, actor.id(), note, now)
		if err != nil {
			return err
		}

		next = t.Reservation
		next.RentalID = &rental.ID
		ok, err := store.UpdateReservation(ctx, tx, &next, model.ReservationOpen)
		if err != nil {
			return err
		}
		if !ok {
			return lostRace("reservation", id, func() error {
				cur, err := store.GetReservation(ctx, tx, id)
				if err != nil || cur == nil {
					return err
				}
				_, err = lifecycle.ConfirmReservation(*cur, now)
				return err
			})
		}
		return nil
	})
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	e.record(ctx, actor, model.ActionReservationConfirmed, model.TableReservations, next.ID,
		fmt.Sprintf("Reservation %d confirmed as rental %d, due %s", next.ID, rental.ID, rental.DueAt.Format(time.RFC3339)),
		map[string]any{"state": change(model.ReservationOpen, next.State), "rental_id": change(nil, rental.ID)})
	return rental, nil
}

// Cancel withdraws an OPEN reservation and releases its item. Only the
// holder or staff may cancel.
func (e *Reservations) Cancel(ctx context.Context, actor Actor, id int64, reason string) (*model.Reservation, error) {
	ctx, span := e.Tracer.Start(ctx, "reservation.cancel", trace.WithAttributes(attribute.Int64("reservation", id)))
	defer span.End()

	now := e.Clock.Now()
	decide := func(r model.Reservation) (lifecycle.ReservationTransition, error) {
		return lifecycle.CancelReservation(r, actor.UserID, actor.Staff(), reason, now)
	}

	var next model.Reservation
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		r, err := store.GetReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return lifecycle.Errorf(lifecycle.CodeNotFound, "reservation %d not found", id)
		}

		t, err := decide(*r)
		if err != nil {
			return err
		}
		next = t.Reservation

		ok, err := store.UpdateReservation(ctx, tx, &next, model.ReservationOpen)
		if err != nil {
			return err
		}
		if !ok {
			return lostRace("reservation", id, func() error {
				cur, err := store.GetReservation(ctx, tx, id)
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
		telemetry.Fail(span, err)
		return nil, err
	}

	desc := fmt.Sprintf("Reservation %d cancelled", next.ID)
	if reason != "" {
		desc += ": " + reason
	}
	e.record(ctx, actor, model.ActionReservationCancelled, model.TableReservations, next.ID, desc,
		map[string]any{"state": change(model.ReservationOpen, next.State)})
	return &next, nil
}
