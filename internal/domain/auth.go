package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Subject is the claim set carried by both halves of a token pair.
type Subject struct {
	ID    string
	Email string
	Role  Role
}

// SubjectOf derives the token claim set from an identity.
func SubjectOf(identity *Identity) Subject {
	return Subject{ID: identity.ID, Email: identity.Email, Role: identity.Role}
}

// TokenPair is the result of a login or rotation.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// HashToken returns the hex SHA-256 digest used to reference a token at rest.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
