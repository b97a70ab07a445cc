package store

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/lifecycle"
	"github.com/erazemk/izposoja/internal/model"
)

// casAttempts bounds how often a registry move re-reads an item whose
// version changed underneath it before giving up.
const casAttempts = 3

// ClaimItem moves an AVAILABLE item to HELD or IN_CUSTODY.
func ClaimItem(ctx context.Context, db DBTX, id int64, to model.ItemState, now time.Time) (*model.Item, error) {
	return moveItem(ctx, db, id, now, func(item model.Item) (model.ItemState, error) {
		return lifecycle.Claim(item, to)
	})
}

// ReleaseItem returns an item to AVAILABLE. Releasing an AVAILABLE item is a
// no-op.
func ReleaseItem(ctx context.Context, db DBTX, id int64, now time.Time) (*model.Item, error) {
	return moveItem(ctx, db, id, now, lifecycle.Release)
}

// TransferItem moves an item directly between claimed states.
func TransferItem(ctx context.Context, db DBTX, id int64, from, to model.ItemState, now time.Time) (*model.Item, error) {
	return moveItem(ctx, db, id, now, func(item model.Item) (model.ItemState, error) {
		return lifecycle.Transfer(item, from, to)
	})
}

// WithdrawItem takes an AVAILABLE item out of circulation.
func WithdrawItem(ctx context.Context, db DBTX, id int64, now time.Time) (*model.Item, error) {
	return moveItem(ctx, db, id, now, lifecycle.Withdraw)
}

// RestoreItem puts a WITHDRAWN item back into circulation.
func RestoreItem(ctx context.Context, db DBTX, id int64, now time.Time) (*model.Item, error) {
	return moveItem(ctx, db, id, now, lifecycle.Restore)
}

// RecoverItem releases an item left IN_CUSTODY by a LOST rental.
func RecoverItem(ctx context.Context, db DBTX, id int64, now time.Time) (*model.Item, error) {
	open, err := HasOpenRental(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return moveItem(ctx, db, id, now, func(item model.Item) (model.ItemState, error) {
		return lifecycle.Recover(item, open)
	})
}

// moveItem applies decide to the current item and writes the result with a
// version compare-and-swap. On a lost race the item is re-read and decided
// again, so a failure always reflects the latest state.
func moveItem(ctx context.Context, db DBTX, id int64, now time.Time, decide func(model.Item) (model.ItemState, error)) (*model.Item, error) {
	for range casAttempts {
		item, err := GetItem(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, lifecycle.Errorf(lifecycle.CodeNotFound, "item %d not found", id)
		}

		next, err := decide(*item)
		if err != nil {
			return nil, err
		}
		if next == item.State {
			return item, nil
		}

		res, err := db.ExecContext(ctx,
			`UPDATE items SET state = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ? AND state = ?`,
			string(next), now, id, item.Version, string(item.State),
		)
		if err != nil {
			return nil, fmt.Errorf("updating item %d state: %w", id, err)
		}
		ok, err := affected(res)
		if err != nil {
			return nil, err
		}
		if ok {
			item.State = next
			item.Version++
			item.UpdatedAt = now
			return item, nil
		}
	}
	return nil, lifecycle.Errorf(lifecycle.CodeItemUnavailable, "item %d is being modified concurrently", id)
}
