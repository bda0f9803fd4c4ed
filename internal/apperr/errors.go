// Package apperr defines the error kinds shared by services and handlers.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("invalid credentials")
	ErrInactive     = errors.New("account is inactive")
	ErrForbidden    = errors.New("forbidden")
	ErrTooLarge     = errors.New("payload too large")
)

// Error pairs a kind sentinel with the message shown to API clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFound returns a not-found error such as "Shipment not found".
func NotFound(what string) error {
	return &Error{Kind: ErrNotFound, Message: what + " not found"}
}

func Conflict(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

func TooLarge(message string) error {
	return &Error{Kind: ErrTooLarge, Message: message}
}

var statusByKind = []struct {
	kind   error
	status int
	text   string
}{
	{ErrNotFound, http.StatusNotFound, "Not found"},
	{ErrConflict, http.StatusConflict, "Conflict"},
	{ErrUnauthorized, http.StatusUnauthorized, "Invalid credentials"},
	{ErrInactive, http.StatusForbidden, "Account is inactive"},
	{ErrForbidden, http.StatusForbidden, "Unauthorized access"},
	{ErrTooLarge, http.StatusRequestEntityTooLarge, "File too large"},
}

// Status maps an error to its HTTP status and client-facing message.
// Unclassified errors are internal and their cause is not exposed.
func Status(err error) (int, string) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Error()
	}

	for _, k := range statusByKind {
		if !errors.Is(err, k.kind) {
			continue
		}
		var appErr *Error
		if errors.As(err, &appErr) && appErr.Message != "" {
			return k.status, appErr.Message
		}
		return k.status, k.text
	}

	return http.StatusInternalServerError, "Internal server error"
}
