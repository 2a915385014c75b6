package vaba

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthorized signals that the portal rejected the session token.
	// The client intercepts it once per operation to re-login and retry;
	// a second occurrence reaches the caller.
	ErrNotAuthorized = errors.New("session not authorized")

	// ErrWrongCredentials means the portal rejected the username/password.
	// There is no point retrying without different credentials.
	ErrWrongCredentials = errors.New("username and/or password are incorrect")

	// ErrReservationNotFound means the reschedule target does not exist or
	// the account has no permission to move it.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrTimeSlotUnavailable means the requested slot is no longer free.
	ErrTimeSlotUnavailable = errors.New("time slot no longer available")
)

// OperationError is an unrecognized business failure from login or
// reschedule. It carries the portal's message when one was present,
// otherwise a fixed default.
type OperationError struct {
	Op      string
	Message string
}

// Error implements the error interface
func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// APIError is a transport-level failure outside the documented response
// shapes, such as an unexpected HTTP status.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("portal API error: status %d: %s", e.StatusCode, e.Message)
}

// IsServerError checks if the failure was on the portal's side
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}
