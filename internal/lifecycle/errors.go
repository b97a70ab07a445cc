package lifecycle

import (
	"errors"
	"fmt"
)

// Code categorizes domain failures.
type Code string

const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeItemUnavailable        Code = "ITEM_UNAVAILABLE"
	CodeDuplicateReservation   Code = "DUPLICATE_RESERVATION"
	CodeReservationExpired     Code = "RESERVATION_EXPIRED"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeOutOfRange             Code = "OUT_OF_RANGE"
	CodeForbidden              Code = "FORBIDDEN"
	CodeConflict               Code = "CONFLICT"
	CodeInvalidInput           Code = "INVALID_INPUT"
)

// Error is a recoverable domain failure. A failed operation that returns an
// Error has left all state unchanged.
type Error struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound)
// holds for every not-found failure regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound               = &Error{Code: CodeNotFound}
	ErrItemUnavailable        = &Error{Code: CodeItemUnavailable}
	ErrDuplicateReservation   = &Error{Code: CodeDuplicateReservation}
	ErrReservationExpired     = &Error{Code: CodeReservationExpired}
	ErrInvalidStateTransition = &Error{Code: CodeInvalidStateTransition}
	ErrOutOfRange             = &Error{Code: CodeOutOfRange}
	ErrForbidden              = &Error{Code: CodeForbidden}
	ErrConflict               = &Error{Code: CodeConflict}
	ErrInvalidInput           = &Error{Code: CodeInvalidInput}
)

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the domain code from err, or "" for non-domain errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
