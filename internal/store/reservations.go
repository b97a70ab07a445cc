package store

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/izposoja/internal/model"
)

const reservationColumns = `id, item_id, holder_id, state, note, cancel_reason, rental_id, created_at, expires_at, closed_at, version`

// ReservationFilter narrows ListReservations. Zero fields match everything.
type ReservationFilter struct {
	ItemID   int64
	HolderID int64
	States   []model.ReservationState
	// ExpiresBefore, when set, keeps only reservations with expires_at at or
	// before it.
	ExpiresBefore time.Time
	Page
}

// InsertReservation stores r and sets its ID.
func InsertReservation(ctx context.Context, db DBTX, r *model.Reservation) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO reservations (item_id, holder_id, state, note, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ItemID, r.HolderID, string(r.State), r.Note, r.CreatedAt, r.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("creating reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting reservation id: %w", err)
	}
	r.ID = id
	r.Version = 0
	return nil
}

// GetReservation returns a reservation by ID.
func GetReservation(ctx context.Context, db DBTX, id int64) (*model.Reservation, error) {
	r, err := queryOne[model.Reservation](ctx, db,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting reservation: %w", err)
	}
	return r, nil
}

// UpdateReservation writes the mutable fields of next if the stored row
// still has version next.Version and state from. It reports whether the
// row was written; on success next.Version is advanced.
func UpdateReservation(ctx context.Context, db DBTX, next *model.Reservation, from model.ReservationState) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE reservations
		 SET state = ?, note = ?, cancel_reason = ?, rental_id = ?, closed_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND state = ?`,
		string(next.State), next.Note, next.CancelReason, next.RentalID, next.ClosedAt,
		next.ID, next.Version, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("updating reservation %d: %w", next.ID, err)
	}
	ok, err := affected(res)
	if ok {
		next.Version++
	}
	return ok, err
}

// HasOpenReservation reports whether holderID has an OPEN reservation on itemID.
func HasOpenReservation(ctx context.Context, db DBTX, itemID, holderID int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE item_id = ? AND holder_id = ? AND state = 'OPEN'`,
		itemID, holderID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking open reservation: %w", err)
	}
	return n > 0, nil
}

// ListReservations returns reservations newest first.
func ListReservations(ctx context.Context, db DBTX, f ReservationFilter) ([]model.Reservation, error) {
	ds := dialect.From("reservations").
		Select(goqu.L(reservationColumns)).
		Order(goqu.C("id").Desc())
	if f.ItemID != 0 {
		ds = ds.Where(goqu.C("item_id").Eq(f.ItemID))
	}
	if f.HolderID != 0 {
		ds = ds.Where(goqu.C("holder_id").Eq(f.HolderID))
	}
	if len(f.States) > 0 {
		ds = ds.Where(goqu.C("state").In(stateArgs(f.States)...))
	}
	if !f.ExpiresBefore.IsZero() {
		ds = ds.Where(goqu.C("expires_at").Lte(f.ExpiresBefore))
	}

	rs, err := selectAll[model.Reservation](ctx, db, f.Page.apply(ds))
	if err != nil {
		return nil, fmt.Errorf("listing reservations: %w", err)
	}
	return rs, nil
}

func stateArgs[S ~string](states []S) []any {
	out := make([]any, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
