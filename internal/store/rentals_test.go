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

func TestInsertAndGetRental(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	holder, item := seedHolderAndItem(t, database)
	staff, _ := CreateUser(ctx, database, "desk", "hash", model.RoleManager)

	r := &model.Rental{
		ItemID:    item.ID,
		HolderID:  holder.ID,
		State:     model.RentalActive,
		StartedAt: now,
		DueAt:     now.Add(7 * 24 * time.Hour),
		GrantedBy: &staff.ID,
	}
	require.NoError(t, InsertRental(ctx, database, r))

	got, err := GetRental(ctx, database, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RentalActive, got.State)
	require.NotNil(t, got.GrantedBy)
	assert.Equal(t, staff.ID, *got.GrantedBy)
	assert.Nil(t, got.ReservationID)
	assert.True(t, got.DueAt.Equal(r.DueAt))

	open, err := HasOpenRental(ctx, database, item.ID)
	require.NoError(t, err)
	assert.True(t, open)
}

func TestUpdateRentalCompareAndSwap(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	holder, item := seedHolderAndItem(t, database)

	r := &model.Rental{ItemID: item.ID, HolderID: holder.ID, State: model.RentalActive, StartedAt: now, DueAt: now.Add(time.Hour)}
	require.NoError(t, InsertRental(ctx, database, r))

	sweep := *r
	r.DueAt = r.DueAt.Add(48 * time.Hour)
	ok, err := UpdateRental(ctx, database, r, model.RentalActive)
	require.NoError(t, err)
	require.True(t, ok)

	// A sweep holding the pre-extension snapshot loses.
	sweep.State = model.RentalOverdue
	ok, err = UpdateRental(ctx, database, &sweep, model.RentalActive)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := GetRental(ctx, database, r.ID)
	assert.Equal(t, model.RentalActive, got.State)
	assert.True(t, got.DueAt.Equal(r.DueAt))
}

func TestListRentals(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	holder, item := seedHolderAndItem(t, database)
	item2, _ := CreateItem(ctx, database, "Screen", "", "SCR-1", now)

	a := &model.Rental{ItemID: item.ID, HolderID: holder.ID, State: model.RentalOverdue, StartedAt: now, DueAt: now}
	b := &model.Rental{ItemID: item2.ID, HolderID: holder.ID, State: model.RentalReturned, StartedAt: now, DueAt: now}
	require.NoError(t, InsertRental(ctx, database, a))
	require.NoError(t, InsertRental(ctx, database, b))

	open, err := ListRentals(ctx, database, RentalFilter{
		HolderID: holder.ID,
		States:   []model.RentalState{model.RentalActive, model.RentalOverdue},
	})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a.ID, open[0].ID)

	all, err := ListRentals(ctx, database, RentalFilter{Page: Page{Limit: 10}})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListRentalsDueBefore(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	holder, _ := seedHolderAndItem(t, database)

	offsets := []time.Duration{-24 * time.Hour, -time.Millisecond, 0, time.Second}
	ids := make([]int64, len(offsets))
	for i, off := range offsets {
		item, err := CreateItem(ctx, database, "Cable", "", fmt.Sprintf("CBL-%d", i), now)
		require.NoError(t, err)
		r := &model.Rental{ItemID: item.ID, HolderID: holder.ID, State: model.RentalActive, StartedAt: now.Add(-48 * time.Hour), DueAt: now.Add(off)}
		require.NoError(t, InsertRental(ctx, database, r))
		ids[i] = r.ID
	}

	late, err := ListRentals(ctx, database, RentalFilter{
		States:    []model.RentalState{model.RentalActive},
		DueBefore: now,
	})
	require.NoError(t, err)
	got := make([]int64, len(late))
	for i, r := range late {
		got[i] = r.ID
	}
	assert.ElementsMatch(t, ids[:2], got, "rental due exactly now is not late")
}
