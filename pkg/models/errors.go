package models

import (
	"errors"
	"fmt"
)

// Not-found errors map to 404 at the API boundary.
var (
	ErrGameNotFound = errors.New("game not found")
	ErrHandNotFound = errors.New("hand not found")
)

// ErrWindowExpired is returned when a correction is attempted on a hand
// outside its correction window and no override was supplied. A business
// rule rejection, not a system fault; maps to 403 at the API boundary.
var ErrWindowExpired = errors.New("correction window expired")

// ValidationError is a malformed-input rejection raised before any mutation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// UnbalancedError reports a hand whose point deltas do not sum to zero.
type UnbalancedError struct {
	Total float64
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("hand events are unbalanced: points_delta total %.2f, want 0", e.Total)
}
