package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/lifecycle"
	"github.com/erazemk/izposoja/internal/model"
)

func TestClaimItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, "Tripod", "", "TR-1", now)
	require.NoError(t, err)

	claimed, err := ClaimItem(ctx, database, item.ID, model.ItemHeld, now)
	require.NoError(t, err)
	assert.Equal(t, model.ItemHeld, claimed.State)
	assert.Equal(t, item.Version+1, claimed.Version)

	_, err = ClaimItem(ctx, database, item.ID, model.ItemInCustody, now)
	assert.ErrorIs(t, err, lifecycle.ErrItemUnavailable)

	_, err = ClaimItem(ctx, database, 999, model.ItemHeld, now)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestClaimItemInactive(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Tripod", "", "TR-1", now)
	require.NoError(t, SetItemActive(ctx, database, item.ID, false, now))

	_, err := ClaimItem(ctx, database, item.ID, model.ItemHeld, now)
	assert.ErrorIs(t, err, lifecycle.ErrItemUnavailable)
}

func TestClaimItemConcurrent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Tripod", "", "TR-1", now)

	const workers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ClaimItem(ctx, database, item.ID, model.ItemHeld, now); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, lifecycle.ErrItemUnavailable)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestReleaseAndTransfer(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Tripod", "", "TR-1", now)
	_, err := ClaimItem(ctx, database, item.ID, model.ItemHeld, now)
	require.NoError(t, err)

	moved, err := TransferItem(ctx, database, item.ID, model.ItemHeld, model.ItemInCustody, now)
	require.NoError(t, err)
	assert.Equal(t, model.ItemInCustody, moved.State)

	_, err = TransferItem(ctx, database, item.ID, model.ItemHeld, model.ItemInCustody, now)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidStateTransition)

	released, err := ReleaseItem(ctx, database, item.ID, now)
	require.NoError(t, err)
	assert.Equal(t, model.ItemAvailable, released.State)

	// Releasing again is a no-op.
	again, err := ReleaseItem(ctx, database, item.ID, now)
	require.NoError(t, err)
	assert.Equal(t, released.Version, again.Version)
}

func TestWithdrawRestoreItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Tripod", "", "TR-1", now)
	ClaimItem(ctx, database, item.ID, model.ItemHeld, now)

	_, err := WithdrawItem(ctx, database, item.ID, now)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidStateTransition)

	ReleaseItem(ctx, database, item.ID, now)
	w, err := WithdrawItem(ctx, database, item.ID, now)
	require.NoError(t, err)
	assert.Equal(t, model.ItemWithdrawn, w.State)

	_, err = ClaimItem(ctx, database, item.ID, model.ItemHeld, now)
	assert.ErrorIs(t, err, lifecycle.ErrItemUnavailable)

	r, err := RestoreItem(ctx, database, item.ID, now)
	require.NoError(t, err)
	assert.Equal(t, model.ItemAvailable, r.State)
}

func TestRecoverItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	holder, _ := CreateUser(ctx, database, "ana", "hash", model.RoleUser)
	item, _ := CreateItem(ctx, database, "Tripod", "", "TR-1", now)
	ClaimItem(ctx, database, item.ID, model.ItemInCustody, now)

	rental := &model.Rental{ItemID: item.ID, HolderID: holder.ID, State: model.RentalActive, StartedAt: now, DueAt: now}
	require.NoError(t, InsertRental(ctx, database, rental))

	_, err := RecoverItem(ctx, database, item.ID, now)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidStateTransition)

	rental.State = model.RentalLost
	ok, err := UpdateRental(ctx, database, rental, model.RentalActive)
	require.NoError(t, err)
	require.True(t, ok)

	recovered, err := RecoverItem(ctx, database, item.ID, now)
	require.NoError(t, err)
	assert.Equal(t, model.ItemAvailable, recovered.State)
}
