package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestWithCauseKeepsSentinelIdentity(t *testing.T) {
	cause := errors.New("token is expired")
	err := WithCause(ErrInvalidToken, cause)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrRevokedToken)
	assert.Contains(t, err.Error(), "token is expired")

	de := ToDomainError(fmt.Errorf("verify: %w", err))
	assert.Same(t, ErrInvalidToken, de)
}

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
	assert.Same(t, ErrForbidden, ToDomainError(ErrForbidden))

	de := ToDomainError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, "INTERNAL_ERROR", de.Code)
	assert.Equal(t, "internal server error", de.Message, "internals never reach the message")
}

func TestTaxonomyStatuses(t *testing.T) {
	tests := map[*DomainError]int{
		ErrMissingCredential: http.StatusUnauthorized,
		ErrInvalidToken:      http.StatusUnauthorized,
		ErrRevokedToken:      http.StatusUnauthorized,
		ErrUnknownSubject:    http.StatusUnauthorized,
		ErrForbidden:         http.StatusForbidden,
		ErrInactiveAccount:   http.StatusForbidden,
		ErrRateLimitExceeded: http.StatusTooManyRequests,
	}
	for err, status := range tests {
		assert.Equal(t, status, err.HTTPStatus, err.Code)
		assert.True(t, IsOperational(err), err.Code)
	}

	assert.False(t, IsOperational(NewInternalError(errors.New("boom"))))
	assert.Equal(t, http.StatusBadRequest, ToDomainError(NewValidationError("bad", nil)).HTTPStatus)
}

func TestInternalErrorUnwraps(t *testing.T) {
	cause := errors.New("redis: connection pool timeout")
	err := NewInternalError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection pool timeout")
}

func TestToDomainErrorKeepsFiberStatus(t *testing.T) {
	de := ToDomainError(fiber.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	assert.Equal(t, "NOT_FOUND", de.Code)
	assert.True(t, IsOperational(fiber.ErrNotFound))

	de = ToDomainError(fmt.Errorf("route: %w", fiber.ErrMethodNotAllowed))
	assert.Equal(t, http.StatusMethodNotAllowed, de.HTTPStatus)
	assert.Equal(t, "METHOD_NOT_ALLOWED", de.Code)

	de = ToDomainError(fiber.NewError(599, "odd"))
	assert.Equal(t, "HTTP_ERROR", de.Code)
	assert.Equal(t, "odd", de.Message)
}
