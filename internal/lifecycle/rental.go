package lifecycle

import (
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

const day = 24 * time.Hour

// RentalTransition is the outcome of a rental decision.
type RentalTransition struct {
	Rental model.Rental
	Effect ItemEffect
}

// StartRental builds a new ACTIVE rental. fromReservation is nil for a
// direct grant, in which case the item must be claimed into custody;
// otherwise the item is transferred from the reservation's hold.
func StartRental(itemID, holderID int64, fromReservation *int64, grantedBy *int64, note string, now time.Time, p Policy) RentalTransition {
	effect := EffectClaimCustody
	if fromReservation != nil {
		effect = EffectTransfer
	}
	return RentalTransition{
		Rental: model.Rental{
			ItemID:        itemID,
			HolderID:      holderID,
			ReservationID: fromReservation,
			State:         model.RentalActive,
			Note:          note,
			StartedAt:     now,
			DueAt:         now.Add(p.CustodyWindow),
			GrantedBy:     grantedBy,
		},
		Effect: effect,
	}
}

// ReturnRental decides a return. Valid from ACTIVE and OVERDUE.
func ReturnRental(r model.Rental, actorID *int64, note string, now time.Time) (RentalTransition, error) {
	if !r.State.Open() {
		return RentalTransition{}, Errorf(CodeInvalidStateTransition, "rental %d is %s", r.ID, r.State)
	}

	next := r
	next.State = model.RentalReturned
	next.ReturnedAt = &now
	next.ReturnedBy = actorID
	if note != "" {
		next.Note = appendNote(r.Note, "[returned: "+note+"]")
	}
	return RentalTransition{Rental: next, Effect: EffectRelease}, nil
}

// ExtendRental pushes the due date of r by days. An extension always clears
// OVERDUE, even when the new due date is still in the past: the caller has
// explicitly reset the window.
func ExtendRental(r model.Rental, days int, reason string, p Policy) (RentalTransition, error) {
	if days < 1 || days > p.MaxExtensionDays {
		return RentalTransition{}, Errorf(CodeOutOfRange, "extension must be between 1 and %d days, got %d", p.MaxExtensionDays, days)
	}
	if !r.State.Open() {
		return RentalTransition{}, Errorf(CodeInvalidStateTransition, "rental %d is %s", r.ID, r.State)
	}

	next := r
	next.DueAt = r.DueAt.Add(time.Duration(days) * day)
	next.State = model.RentalActive

	line := fmt.Sprintf("[extended %d days: %s -> %s", days, r.DueAt.Format("2006-01-02"), next.DueAt.Format("2006-01-02"))
	if reason != "" {
		line += " - " + reason
	}
	next.Note = appendNote(r.Note, line+"]")
	return RentalTransition{Rental: next, Effect: EffectNone}, nil
}

// MarkOverdue decides the sweep transition for r. ok is false unless r is
// ACTIVE and strictly past its due date. The item stays IN_CUSTODY.
func MarkOverdue(r model.Rental, now time.Time) (t RentalTransition, ok bool) {
	if r.State != model.RentalActive || !now.After(r.DueAt) {
		return RentalTransition{}, false
	}

	next := r
	next.State = model.RentalOverdue
	return RentalTransition{Rental: next, Effect: EffectNone}, true
}

// MarkLost closes r as LOST. The item is not released.
func MarkLost(r model.Rental, note string) (RentalTransition, error) {
	if !r.State.Open() {
		return RentalTransition{}, Errorf(CodeInvalidStateTransition, "rental %d is %s", r.ID, r.State)
	}

	next := r
	next.State = model.RentalLost
	if note != "" {
		next.Note = appendNote(r.Note, "[lost: "+note+"]")
	}
	return RentalTransition{Rental: next, Effect: EffectNone}, nil
}
