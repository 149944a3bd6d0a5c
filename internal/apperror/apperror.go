package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is an application error carrying the HTTP status it maps to.
// Message is safe to return to clients; Internal is the underlying cause
// and is only logged.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Internal   error

	// Allow is set for UnsupportedMethod errors and becomes the Allow header.
	Allow string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap exposes the internal cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Internal
}

const (
	CodeConfigurationMissing = "CONFIGURATION_MISSING"
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeUpstreamFailure      = "UPSTREAM_FAILURE"
	CodeUnsupportedMethod    = "UNSUPPORTED_METHOD"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeNotFound             = "NOT_FOUND"
	CodeUnsupportedMedia     = "UNSUPPORTED_MEDIA"
	CodeTooLarge             = "TOO_LARGE"
	CodeConflict             = "CONFLICT"
)

// ConfigurationMissing reports absent required settings. It is returned
// before any external call is attempted.
func ConfigurationMissing(vars ...string) *Error {
	msg := "server configuration missing"
	if len(vars) > 0 {
		msg = fmt.Sprintf("server configuration missing: %s", strings.Join(vars, ", "))
	}
	return &Error{Code: CodeConfigurationMissing, Message: msg, StatusCode: http.StatusInternalServerError}
}

// Unauthenticated means no auth strategy resolved a user.
func Unauthenticated(message string, err error) *Error {
	return &Error{Code: CodeUnauthenticated, Message: message, StatusCode: http.StatusUnauthorized, Internal: err}
}

// InvalidSignature rejects a webhook whose signature does not match the body.
func InvalidSignature(message string, err error) *Error {
	return &Error{Code: CodeInvalidSignature, Message: message, StatusCode: http.StatusBadRequest, Internal: err}
}

// UpstreamFailure wraps a Role Store write or provider API error so the
// caller (or the provider's redelivery) can retry.
func UpstreamFailure(message string, err error) *Error {
	return &Error{Code: CodeUpstreamFailure, Message: message, StatusCode: http.StatusInternalServerError, Internal: err}
}

// UnsupportedMethod rejects the request method; allow lists the accepted ones.
func UnsupportedMethod(allow string) *Error {
	return &Error{Code: CodeUnsupportedMethod, Message: "method not allowed", StatusCode: http.StatusMethodNotAllowed, Allow: allow}
}

func InvalidInput(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message, StatusCode: http.StatusBadRequest}
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message, StatusCode: http.StatusNotFound}
}

func UnsupportedMedia(message string) *Error {
	return &Error{Code: CodeUnsupportedMedia, Message: message, StatusCode: http.StatusUnsupportedMediaType}
}

func TooLarge(message string) *Error {
	return &Error{Code: CodeTooLarge, Message: message, StatusCode: http.StatusRequestEntityTooLarge}
}

func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message, StatusCode: http.StatusConflict}
}

// From returns err as an *Error, wrapping unknown errors as an upstream
// failure so every handler path maps to a JSON body and a status.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return UpstreamFailure("internal server error", err)
}
