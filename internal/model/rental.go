package model

import "time"

// RentalState is the lifecycle state of a rental.
type RentalState string

// Rental states. OVERDUE is ACTIVE with a passed due date; RETURNED and
// LOST are terminal.
const (
	RentalActive   RentalState = "ACTIVE"
	RentalOverdue  RentalState = "OVERDUE"
	RentalReturned RentalState = "RETURNED"
	RentalLost     RentalState = "LOST"
)

// Open reports whether the rental still holds custody of its item.
func (s RentalState) Open() bool {
	return s == RentalActive || s == RentalOverdue
}

// Rental tracks physical custody of an item for a bounded period.
type Rental struct {
	ID            int64       `json:"id" db:"id"`
	ItemID        int64       `json:"item_id" db:"item_id"`
	HolderID      int64       `json:"holder_id" db:"holder_id"`
	ReservationID *int64      `json:"reservation_id,omitempty" db:"reservation_id"`
	State         RentalState `json:"state" db:"state"`
	Note          string      `json:"note,omitempty" db:"note"`
	StartedAt     time.Time   `json:"started_at" db:"started_at"`
	DueAt         time.Time   `json:"due_at" db:"due_at"`
	ReturnedAt    *time.Time  `json:"returned_at,omitempty" db:"returned_at"`
	GrantedBy     *int64      `json:"granted_by,omitempty" db:"granted_by"`
	ReturnedBy    *int64      `json:"returned_by,omitempty" db:"returned_by"`
	Version       int64       `json:"-" db:"version"`
}

// ValidRentalState reports whether s names a known rental state.
func ValidRentalState(s string) bool {
	switch RentalState(s) {
	case RentalActive, RentalOverdue, RentalReturned, RentalLost:
		return true
	}
	return false
}
