// Package apperr defines the typed errors handlers map to HTTP statuses.
package apperr

import "fmt"

// Error carries an HTTP status and a user-facing message. The wrapped
// cause, if any, is for server-side logs only and never leaks outward.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches a cause to a typed error, e.g. for logging upstream.
func Wrap(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Err: fmt.Errorf("%s: %w", message, cause)}
}
