package types

import (
	"errors"
	"fmt"
)

// Base error kinds. Specific errors below wrap one of these so handlers
// can map a failure to an HTTP status with errors.Is, while the wrapped
// message still names the exact cause.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
)

var (
	ErrCapacityExceeded    = fmt.Errorf("%w: machine is fully occupied", ErrConflict)
	ErrEntryClosed         = fmt.Errorf("%w: entry already ended", ErrConflict)
	ErrSlotUnavailable     = fmt.Errorf("%w: time slot is not available", ErrConflict)
	ErrNoOutstandingCredit = fmt.Errorf("%w: customer has no pending credit", ErrConflict)
	ErrMembershipInvalid   = fmt.Errorf("%w: membership is not usable", ErrInvalidState)
	ErrInsufficientHours   = fmt.Errorf("%w: not enough hours in membership", ErrValidation)
	ErrInvalidAmount       = fmt.Errorf("%w: payment amount must be greater than 0", ErrValidation)
)
