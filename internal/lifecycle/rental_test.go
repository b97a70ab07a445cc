package lifecycle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/model"
)

func activeRental() model.Rental {
	return model.Rental{
		ID:        5,
		ItemID:    1,
		HolderID:  7,
		State:     model.RentalActive,
		StartedAt: t0,
		DueAt:     t0.Add(7 * 24 * time.Hour),
	}
}

func TestStartRental(t *testing.T) {
	p := DefaultPolicy()

	direct := StartRental(1, 7, nil, nil, "", t0, p)
	assert.Equal(t, EffectClaimCustody, direct.Effect)
	assert.Equal(t, model.RentalActive, direct.Rental.State)
	assert.Equal(t, t0.Add(p.CustodyWindow), direct.Rental.DueAt)

	resID := int64(3)
	converted := StartRental(1, 7, &resID, nil, "", t0, p)
	assert.Equal(t, EffectTransfer, converted.Effect)
	assert.Equal(t, &resID, converted.Rental.ReservationID)
}

func TestReturnRental(t *testing.T) {
	actor := int64(2)
	for _, s := range []model.RentalState{model.RentalActive, model.RentalOverdue} {
		r := activeRental()
		r.State = s
		tr, err := ReturnRental(r, &actor, "", t0)
		require.NoError(t, err, s)
		assert.Equal(t, model.RentalReturned, tr.Rental.State)
		assert.Equal(t, EffectRelease, tr.Effect)
		assert.Equal(t, &actor, tr.Rental.ReturnedBy)
	}

	for _, s := range []model.RentalState{model.RentalReturned, model.RentalLost} {
		r := activeRental()
		r.State = s
		_, err := ReturnRental(r, &actor, "", t0)
		assert.ErrorIs(t, err, ErrInvalidStateTransition, s)
	}
}

func TestExtendRental(t *testing.T) {
	p := DefaultPolicy()
	r := activeRental()

	tr, err := ExtendRental(r, 3, "exam week", p)
	require.NoError(t, err)
	assert.Equal(t, r.DueAt.Add(3*24*time.Hour), tr.Rental.DueAt)
	assert.Contains(t, tr.Rental.Note, "[extended 3 days")
	assert.Contains(t, tr.Rental.Note, "exam week")
	assert.Equal(t, EffectNone, tr.Effect)

	for _, days := range []int{0, -1, p.MaxExtensionDays + 1} {
		_, err := ExtendRental(r, days, "", p)
		assert.ErrorIs(t, err, ErrOutOfRange, days)
	}

	r.State = model.RentalReturned
	_, err = ExtendRental(r, 1, "", p)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestExtendRental_ClearsOverdue(t *testing.T) {
	p := DefaultPolicy()
	r := activeRental()
	r.State = model.RentalOverdue
	r.DueAt = t0.Add(-30 * 24 * time.Hour)

	tr, err := ExtendRental(r, 1, "", p)
	require.NoError(t, err)
	assert.Equal(t, model.RentalActive, tr.Rental.State)
	assert.True(t, tr.Rental.DueAt.Before(t0))
}

func TestExtendRental_AppendsNotes(t *testing.T) {
	p := DefaultPolicy()
	r := activeRental()
	r.Note = "camera bag included"

	tr, err := ExtendRental(r, 2, "", p)
	require.NoError(t, err)
	tr, err = ExtendRental(tr.Rental, 2, "", p)
	require.NoError(t, err)

	assert.Len(t, strings.Split(tr.Rental.Note, "\n"), 3)
	assert.Equal(t, "camera bag included", strings.Split(tr.Rental.Note, "\n")[0])
}

func TestMarkOverdue(t *testing.T) {
	r := activeRental()

	_, ok := MarkOverdue(r, r.DueAt)
	assert.False(t, ok, "due date itself is not overdue")

	tr, ok := MarkOverdue(r, r.DueAt.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, model.RentalOverdue, tr.Rental.State)
	assert.Equal(t, EffectNone, tr.Effect)

	r.State = model.RentalOverdue
	_, ok = MarkOverdue(r, r.DueAt.Add(time.Hour))
	assert.False(t, ok)
}

func TestMarkLost(t *testing.T) {
	r := activeRental()

	tr, err := MarkLost(r, "left on the train")
	require.NoError(t, err)
	assert.Equal(t, model.RentalLost, tr.Rental.State)
	assert.Equal(t, EffectNone, tr.Effect)
	assert.Contains(t, tr.Rental.Note, "left on the train")

	_, err = MarkLost(tr.Rental, "")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}
