package model

import "time"

// AuditRecord describes one state-changing operation.
type AuditRecord struct {
	ID            int64          `json:"id" db:"id"`
	Action        string         `json:"action" db:"action"`
	EntityTable   string         `json:"entity_table" db:"entity_table"`
	ActorID       *int64         `json:"actor_id,omitempty" db:"actor_id"`
	RecordID      int64          `json:"record_id" db:"record_id"`
	Description   string         `json:"description" db:"description"`
	Origin        string         `json:"origin,omitempty" db:"origin"`
	CorrelationID string         `json:"correlation_id,omitempty" db:"correlation_id"`
	Changes       map[string]any `json:"changes,omitempty" db:"-"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// Audit actions.
const (
	ActionReservationCreated   = "RESERVATION_CREATED"
	ActionReservationConfirmed = "RESERVATION_CONFIRMED"
	ActionReservationCancelled = "RESERVATION_CANCELLED"
	ActionReservationExpired   = "RESERVATION_EXPIRED"
	ActionRentalGranted        = "RENTAL_GRANTED"
	ActionRentalReturned       = "RENTAL_RETURNED"
	ActionRentalExtended       = "RENTAL_EXTENDED"
	ActionRentalOverdue        = "RENTAL_OVERDUE"
	ActionRentalLost           = "RENTAL_LOST"
	ActionItemWithdrawn        = "ITEM_WITHDRAWN"
	ActionItemRestored         = "ITEM_RESTORED"
	ActionItemRecovered        = "ITEM_RECOVERED"
	ActionItemCreated          = "ITEM_CREATED"
	ActionItemUpdated          = "ITEM_UPDATED"
	ActionItemActivated        = "ITEM_ACTIVATED"
	ActionItemDeactivated      = "ITEM_DEACTIVATED"
	ActionItemImageSet         = "ITEM_IMAGE_SET"
	ActionCategoryCreated      = "CATEGORY_CREATED"
	ActionCategoryUpdated      = "CATEGORY_UPDATED"
	ActionCategoryDeleted      = "CATEGORY_DELETED"
	ActionUserCreated          = "USER_CREATED"
	ActionUserUpdated          = "USER_UPDATED"
	ActionUserPasswordReset    = "USER_PASSWORD_RESET"
	ActionUserDeleted          = "USER_DELETED"
	ActionLogin                = "LOGIN"
	ActionLogout               = "LOGOUT"
	ActionTokenRefreshed       = "TOKEN_REFRESHED"
	ActionPasswordChanged      = "PASSWORD_CHANGED"
)

// Audited tables.
const (
	TableItems        = "items"
	TableReservations = "reservations"
	TableRentals      = "rentals"
	TableCategories   = "categories"
	TableUsers        = "users"
)
