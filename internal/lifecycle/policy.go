package lifecycle

import (
	"errors"
	"time"
)

// Policy holds the time windows the state machines are parameterized by.
type Policy struct {
	// HoldWindow is how long a reservation stays OPEN before it expires.
	HoldWindow time.Duration

	// CustodyWindow is the initial rental period before it becomes overdue.
	CustodyWindow time.Duration

	// MaxExtensionDays caps a single rental extension.
	MaxExtensionDays int
}

// DefaultPolicy returns a one hour hold, seven day custody and a seven day
// extension cap.
func DefaultPolicy() Policy {
	return Policy{
		HoldWindow:       time.Hour,
		CustodyWindow:    7 * 24 * time.Hour,
		MaxExtensionDays: 7,
	}
}

// Validate checks that every window is usable.
func (p Policy) Validate() error {
	if p.HoldWindow <= 0 {
		return errors.New("hold window must be positive")
	}
	if p.CustodyWindow <= 0 {
		return errors.New("custody window must be positive")
	}
	if p.MaxExtensionDays < 1 {
		return errors.New("max extension days must be at least 1")
	}
	return nil
}
