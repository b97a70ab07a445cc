package lifecycle

import (
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

// ReservationTransition is the outcome of a reservation decision.
type ReservationTransition struct {
	Reservation model.Reservation
	Effect      ItemEffect
}

// OpenReservation decides a hold request by holderID on item.
// holderHasOpen reports whether the holder already has an OPEN reservation
// on the same item.
func OpenReservation(item model.Item, holderID int64, holderHasOpen bool, note string, now time.Time, p Policy) (ReservationTransition, error) {
	if holderHasOpen {
		return ReservationTransition{}, Errorf(CodeDuplicateReservation, "holder %d already has an open reservation on item %d", holderID, item.ID)
	}
	if _, err := Claim(item, model.ItemHeld); err != nil {
		return ReservationTransition{}, err
	}

	return ReservationTransition{
		Reservation: model.Reservation{
			ItemID:    item.ID,
			HolderID:  holderID,
			State:     model.ReservationOpen,
			Note:      note,
			CreatedAt: now,
			ExpiresAt: now.Add(p.HoldWindow),
		},
		Effect: EffectClaimHeld,
	}, nil
}

// ConfirmReservation decides the hand-off of r into a rental. A confirm at
// or after expires-at is rejected even if no sweep has run yet.
func ConfirmReservation(r model.Reservation, now time.Time) (ReservationTransition, error) {
	switch r.State {
	case model.ReservationOpen:
	case model.ReservationExpired:
		return ReservationTransition{}, Errorf(CodeReservationExpired, "reservation %d expired at %s", r.ID, r.ExpiresAt.Format(time.RFC3339))
	default:
		return ReservationTransition{}, Errorf(CodeInvalidStateTransition, "reservation %d is %s", r.ID, r.State)
	}
	if !now.Before(r.ExpiresAt) {
		return ReservationTransition{}, Errorf(CodeReservationExpired, "reservation %d expired at %s", r.ID, r.ExpiresAt.Format(time.RFC3339))
	}

	next := r
	next.State = model.ReservationConverted
	next.ClosedAt = &now
	return ReservationTransition{Reservation: next, Effect: EffectTransfer}, nil
}

// CancelReservation decides a cancel by actorID. Only the holder or staff
// may cancel.
func CancelReservation(r model.Reservation, actorID int64, staff bool, reason string, now time.Time) (ReservationTransition, error) {
	if !staff && r.HolderID != actorID {
		return ReservationTransition{}, Errorf(CodeForbidden, "reservation %d belongs to another holder", r.ID)
	}
	if r.State != model.ReservationOpen {
		return ReservationTransition{}, Errorf(CodeInvalidStateTransition, "reservation %d is %s", r.ID, r.State)
	}

	next := r
	next.State = model.ReservationCancelled
	next.CancelReason = reason
	next.ClosedAt = &now
	return ReservationTransition{Reservation: next, Effect: EffectRelease}, nil
}

// ExpireReservation decides the sweep transition for r. ok is false when
// the guard does not hold (already closed, or not yet due) and nothing
// should change.
func ExpireReservation(r model.Reservation, now time.Time) (t ReservationTransition, ok bool) {
	if r.State != model.ReservationOpen || now.Before(r.ExpiresAt) {
		return ReservationTransition{}, false
	}

	next := r
	next.State = model.ReservationExpired
	next.ClosedAt = &now
	return ReservationTransition{Reservation: next, Effect: EffectRelease}, true
}
