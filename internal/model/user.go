package model

import (
	"errors"
	"time"
)

// User represents an authenticated actor. Holders of reservations and
// rentals are users.
type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         string     `json:"role" db:"role"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Roles.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles fail closed.
func RoleAtLeast(role, minimum string) bool {
	need := levels(minimum)
	return need > 0 && levels(role) >= need
}

// IsStaff reports whether role may act on other users' reservations and rentals.
func IsStaff(role string) bool {
	return RoleAtLeast(role, RoleManager)
}

func levels(role string) int {
	switch role {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleUser:
		return 1
	}
	return 0
}

// ValidatePassword checks password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
