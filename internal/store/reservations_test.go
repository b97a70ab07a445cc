package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

func seedHolderAndItem(t *testing.T, database DBTX) (*model.User, *model.Item) {
	t.Helper()
	ctx := context.Background()

	holder, err := CreateUser(ctx, database, "ana", "hash", model.RoleUser)
	require.NoError(t, err)
	item, err := CreateItem(ctx, database, "Projector", "", "PRJ-1", now)
	require.NoError(t, err)
	return holder, item
}

func TestInsertAndGetReservation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	holder, item := seedHolderAndItem(t, database)

	r := &model.Reservation{
		ItemID:    item.ID,
		HolderID:  holder.ID,
		State:     model.ReservationOpen,
		Note:      "for the workshop",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, InsertReservation(ctx, database, r))
	require.NotZero(t, r.ID)

	got, err := GetReservation(ctx, database, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ReservationOpen, got.State)
	assert.Equal(t, "for the workshop", got.Note)
	assert.True(t, got.ExpiresAt.Equal(r.ExpiresAt))
	assert.Nil(t, got.ClosedAt)
	assert.Nil(t, got.RentalID)

	has, err := HasOpenReservation(ctx, database, item.ID, holder.ID)
	require.NoError(t, err)
	assert.True(t, has)

	missing, err := GetReservation(ctx, database, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateReservationCompareAndSwap(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	holder, item := seedHolderAndItem(t, database)

	r := &model.Reservation{ItemID: item.ID, HolderID: holder.ID, State: model.ReservationOpen, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, InsertReservation(ctx, database, r))

	stale := *r

	closed := now.Add(time.Minute)
	r.State = model.ReservationCancelled
	r.CancelReason = "no longer needed"
	r.ClosedAt = &closed
	ok, err := UpdateReservation(ctx, database, r, model.ReservationOpen)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), r.Version)

	stale.State = model.ReservationExpired
	ok, err = UpdateReservation(ctx, database, &stale, model.ReservationOpen)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not overwrite")

	got, _ := GetReservation(ctx, database, r.ID)
	assert.Equal(t, model.ReservationCancelled, got.State)
	assert.Equal(t, "no longer needed", got.CancelReason)
	require.NotNil(t, got.ClosedAt)
	assert.True(t, got.ClosedAt.Equal(closed))
}

func TestListReservations(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	holder, item := seedHolderAndItem(t, database)
	other, _ := CreateUser(ctx, database, "bor", "hash", model.RoleUser)
	item2, _ := CreateItem(ctx, database, "Screen", "", "SCR-1", now)

	open := &model.Reservation{ItemID: item.ID, HolderID: holder.ID, State: model.ReservationOpen, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, InsertReservation(ctx, database, open))
	expired := &model.Reservation{ItemID: item2.ID, HolderID: holder.ID, State: model.ReservationExpired, CreatedAt: now, ExpiresAt: now}
	require.NoError(t, InsertReservation(ctx, database, expired))
	theirs := &model.Reservation{ItemID: item2.ID, HolderID: other.ID, State: model.ReservationOpen, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, InsertReservation(ctx, database, theirs))

	mine, err := ListReservations(ctx, database, ReservationFilter{HolderID: holder.ID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, expired.ID, mine[0].ID, "newest first")

	openOnly, err := ListReservations(ctx, database, ReservationFilter{States: []model.ReservationState{model.ReservationOpen}})
	require.NoError(t, err)
	assert.Len(t, openOnly, 2)

	byItem, err := ListReservations(ctx, database, ReservationFilter{ItemID: item2.ID, HolderID: other.ID})
	require.NoError(t, err)
	require.Len(t, byItem, 1)
	assert.Equal(t, theirs.ID, byItem[0].ID)
}

func TestListReservationsExpiresBefore(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	holder, _ := seedHolderAndItem(t, database)

	// Expiries on either side of the cutoff, including sub-second ones.
	offsets := []time.Duration{-time.Hour, -500 * time.Millisecond, 0, 250 * time.Millisecond, time.Hour}
	ids := make([]int64, len(offsets))
	for i, off := range offsets {
		item, err := CreateItem(ctx, database, "Cable", "", fmt.Sprintf("CBL-%d", i), now)
		require.NoError(t, err)
		r := &model.Reservation{ItemID: item.ID, HolderID: holder.ID, State: model.ReservationOpen, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(off)}
		require.NoError(t, InsertReservation(ctx, database, r))
		ids[i] = r.ID
	}

	due, err := ListReservations(ctx, database, ReservationFilter{
		States:        []model.ReservationState{model.ReservationOpen},
		ExpiresBefore: now,
	})
	require.NoError(t, err)
	got := make([]int64, len(due))
	for i, r := range due {
		got[i] = r.ID
	}
	assert.ElementsMatch(t, ids[:3], got, "expiry at the cutoff is included")
}
