package model

import "time"

// ReservationState is the lifecycle state of a reservation.
type ReservationState string

// Reservation states. OPEN is the only non-terminal state.
const (
	ReservationOpen      ReservationState = "OPEN"
	ReservationConverted ReservationState = "CONVERTED"
	ReservationExpired   ReservationState = "EXPIRED"
	ReservationCancelled ReservationState = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s ReservationState) Terminal() bool {
	return s != ReservationOpen
}

// Reservation is a short hold on an item pending pickup.
type Reservation struct {
	ID           int64            `json:"id" db:"id"`
	ItemID       int64            `json:"item_id" db:"item_id"`
	HolderID     int64            `json:"holder_id" db:"holder_id"`
	State        ReservationState `json:"state" db:"state"`
	Note         string           `json:"note,omitempty" db:"note"`
	CancelReason string           `json:"cancel_reason,omitempty" db:"cancel_reason"`
	RentalID     *int64           `json:"rental_id,omitempty" db:"rental_id"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time        `json:"expires_at" db:"expires_at"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty" db:"closed_at"`
	Version      int64            `json:"-" db:"version"`
}

// ValidReservationState reports whether s names a known reservation state.
func ValidReservationState(s string) bool {
	switch ReservationState(s) {
	case ReservationOpen, ReservationConverted, ReservationExpired, ReservationCancelled:
		return true
	}
	return false
}
