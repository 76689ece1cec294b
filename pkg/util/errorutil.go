package util

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Operational failures of the session subsystem. They are shared values:
// compare with errors.Is and never mutate them.
var (
	ErrMissingCredential = NewDomainError("MISSING_CREDENTIAL", "credential required", http.StatusUnauthorized, nil)
	ErrInvalidToken      = NewDomainError("INVALID_TOKEN", "invalid or expired token", http.StatusUnauthorized, nil)
	ErrRevokedToken      = NewDomainError("REVOKED_TOKEN", "token has been revoked", http.StatusUnauthorized, nil)
	ErrUnknownSubject    = NewDomainError("UNKNOWN_SUBJECT", "account not found", http.StatusUnauthorized, nil)
	ErrForbidden         = NewDomainError("FORBIDDEN", "insufficient privileges", http.StatusForbidden, nil)
	ErrInactiveAccount   = NewDomainError("INACTIVE_ACCOUNT", "account is not active", http.StatusForbidden, nil)
	ErrRateLimitExceeded = NewDomainError("RATE_LIMIT_EXCEEDED", "too many requests", http.StatusTooManyRequests, nil)
)

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// WithCause wraps a sentinel with the underlying cause for logging.
// errors.Is against the sentinel keeps matching through Unwrap.
func WithCause(sentinel *DomainError, cause error) error {
	return &wrapped{sentinel: sentinel, cause: cause}
}

type wrapped struct {
	sentinel *DomainError
	cause    error
}

func (w *wrapped) Error() string {
	if w.cause != nil {
		return fmt.Sprintf("%s: %v", w.sentinel.Message, w.cause)
	}
	return w.sentinel.Message
}

func (w *wrapped) Unwrap() []error {
	return []error{w.sentinel, w.cause}
}

// ToDomainError converts generic errors to DomainError. Fiber's own errors
// (unknown route, bad method, body limits) keep their status.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var w *wrapped
	if errors.As(err, &w) {
		return w.sentinel
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return NewDomainError(statusCode(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "HTTP_ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// IsOperational reports whether err is an expected, user-facing failure.
func IsOperational(err error) bool {
	de := ToDomainError(err)
	return de != nil && de.HTTPStatus < http.StatusInternalServerError
}
