package store

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/izposoja/internal/model"
)

const rentalColumns = `id, item_id, holder_id, reservation_id, state, note, started_at, due_at, returned_at, granted_by, returned_by, version`

// RentalFilter narrows ListRentals. Zero fields match everything.
type RentalFilter struct {
	ItemID   int64
	HolderID int64
	States   []model.RentalState
	// DueBefore, when set, keeps only rentals with due_at strictly before it.
	DueBefore time.Time
	Page
}

// InsertRental stores r and sets its ID.
func InsertRental(ctx context.Context, db DBTX, r *model.Rental) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO rentals (item_id, holder_id, reservation_id, state, note, started_at, due_at, granted_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ItemID, r.HolderID, r.ReservationID, string(r.State), r.Note, r.StartedAt, r.DueAt, r.GrantedBy,
	)
	if err != nil {
		return fmt.Errorf("creating rental: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting rental id: %w", err)
	}
	r.ID = id
	r.Version = 0
	return nil
}

// GetRental returns a rental by ID.
func GetRental(ctx context.Context, db DBTX, id int64) (*model.Rental, error) {
	r, err := queryOne[model.Rental](ctx, db,
		`SELECT `+rentalColumns+` FROM rentals WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting rental: %w", err)
	}
	return r, nil
}

// UpdateRental writes the mutable fields of next if the stored row still
// has version next.Version and state from. It reports whether the row was
// written; on success next.Version is advanced.
func UpdateRental(ctx context.Context, db DBTX, next *model.Rental, from model.RentalState) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE rentals
		 SET state = ?, note = ?, due_at = ?, returned_at = ?, returned_by = ?, version = version + 1
		 WHERE id = ? AND version = ? AND state = ?`,
		string(next.State), next.Note, next.DueAt, next.ReturnedAt, next.ReturnedBy,
		next.ID, next.Version, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("updating rental %d: %w", next.ID, err)
	}
	ok, err := affected(res)
	if ok {
		next.Version++
	}
	return ok, err
}

// HasOpenRental reports whether an ACTIVE or OVERDUE rental references itemID.
func HasOpenRental(ctx context.Context, db DBTX, itemID int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rentals WHERE item_id = ? AND state IN ('ACTIVE', 'OVERDUE')`,
		itemID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking open rental: %w", err)
	}
	return n > 0, nil
}

// ListRentals returns rentals newest first.
func ListRentals(ctx context.Context, db DBTX, f RentalFilter) ([]model.Rental, error) {
	ds := dialect.From("rentals").
		Select(goqu.L(rentalColumns)).
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
	if !f.DueBefore.IsZero() {
		ds = ds.Where(goqu.C("due_at").Lt(f.DueBefore))
	}

	rs, err := selectAll[model.Rental](ctx, db, f.Page.apply(ds))
	if err != nil {
		return nil, fmt.Errorf("listing rentals: %w", err)
	}
	return rs, nil
}
