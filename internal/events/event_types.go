package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/research-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionStarted       EventType = "session_started"
	EventSessionRotated       EventType = "session_rotated"
	EventSessionRevoked       EventType = "session_revoked"
	EventRefreshReuseDetected EventType = "refresh_reuse_detected"
)

// Event represents a session lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, subjectID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SessionStartedPayload payload.
type SessionStartedPayload struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// SessionRotatedPayload payload.
type SessionRotatedPayload struct {
	Binding string `json:"binding"`
}

// SessionRevokedPayload payload.
type SessionRevokedPayload struct {
	Reason string `json:"reason"`
}

// RefreshReuseDetectedPayload payload. Fingerprint is a short token digest, never the token.
type RefreshReuseDetectedPayload struct {
	Fingerprint string `json:"fingerprint"`
}
