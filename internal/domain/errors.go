package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNoActiveSession = errors.New("no active trading session")
	ErrAlreadyExists   = errors.New("already exists")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRateLimited     = errors.New("rate limited")
	ErrNotCancellable  = errors.New("order not cancellable")
	ErrBelowMinimum    = errors.New("amount below bridge minimum")
	ErrVenueRejected   = errors.New("venue rejected order")
	ErrNoLiquidity     = errors.New("insufficient liquidity")
	ErrSigningFailed   = errors.New("signing failed")
	ErrUnknownAgent    = errors.New("agent not in wallet registry")
	ErrLockHeld        = errors.New("lock already held")
	ErrWSDisconnect    = errors.New("websocket disconnected")
)

// ValidationError reports a structurally invalid request. Validation
// failures are rejected before any network call and are never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
