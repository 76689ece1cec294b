// Package revocation records refresh tokens that must be rejected even though
// their signature and expiry are still valid.
//
// Entries are keyed by the token's SHA-256 digest and expire together with the
// token they revoke, so the ledger never grows past the set of live tokens.
package revocation

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable wraps backend failures. Callers treat it as a
// non-operational error.
var ErrStoreUnavailable = errors.New("revocation store unavailable")

// Ledger is the append-only revocation set.
type Ledger interface {
	// Revoke records token until expiresAt. Revoking twice is a no-op and a
	// token that has already expired is not recorded.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

func remaining(expiresAt time.Time, now func() time.Time) time.Duration {
	return expiresAt.Sub(now())
}
