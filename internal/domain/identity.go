package domain

import (
	"strings"
	"time"
)

// Role enumerates the principals allowed to authenticate.
type Role string

const (
	RoleAdmin Role = "admin"
	// RoleResearcher is the standard, non-privileged user role.
	RoleResearcher Role = "researcher"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleResearcher
}

// Identity is an authenticating principal.
type Identity struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	// RefreshTokenHash references the single refresh token currently bound to
	// the identity. Empty means no live session.
	RefreshTokenHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NormalizeEmail trims and lower-cases an address for lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
