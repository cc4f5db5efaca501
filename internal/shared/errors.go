package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Compare with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("unauthorized")
	ErrGateway    = errors.New("push gateway error")
	ErrTransport  = errors.New("queue transport error")
)

// Error carries a kind, a client-safe message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func Validation(format string, args ...any) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, fmt.Sprintf(format, args...), nil)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, fmt.Sprintf(format, args...), nil)
}

func Unauthorized(msg string) error {
	return newError(ErrAuth, msg, nil)
}

func Transport(msg string, cause error) error {
	return newError(ErrTransport, msg, cause)
}

func Gateway(msg string, cause error) error {
	return newError(ErrGateway, msg, cause)
}

// Named failures that callers match on.
var (
	ErrNoActiveDevices        = newError(ErrNotFound, "No active devices found", nil)
	ErrNoActiveDevicesForUser = newError(ErrNotFound, "No active devices found for this user", nil)
	ErrUserNotFound           = newError(ErrNotFound, "User not found", nil)
)

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTransport):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to put in a response body.
// Unclassified errors never leak their text.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
