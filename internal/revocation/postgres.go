package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/research-portal/internal/domain"
	"github.com/spec-kit/research-portal/internal/persistence"
)

// PostgresLedger keeps revocations in the revoked_tokens table. Rows past
// expires_at are ignored by lookups and removed by Sweep.
type PostgresLedger struct {
	db  persistence.DBTX
	now func() time.Time
}

// NewPostgresLedger returns a ledger backed by db.
func NewPostgresLedger(db persistence.DBTX) *PostgresLedger {
	return &PostgresLedger{db: db, now: time.Now}
}

func (l *PostgresLedger) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	if remaining(expiresAt, l.now) <= 0 {
		return nil
	}
	const query = `
        INSERT INTO revoked_tokens (token_hash, expires_at)
        VALUES ($1, $2)
        ON CONFLICT (token_hash) DO NOTHING`

	if _, err := l.db.Exec(ctx, query, domain.HashToken(token), expiresAt.UTC()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (l *PostgresLedger) IsRevoked(ctx context.Context, token string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM revoked_tokens WHERE token_hash=$1 AND expires_at > $2
        )`

	var revoked bool
	if err := l.db.QueryRow(ctx, query, domain.HashToken(token), l.now().UTC()).Scan(&revoked); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return revoked, nil
}

// Name identifies the ledger in sweeper logs.
func (l *PostgresLedger) Name() string {
	return "revocation-ledger"
}

// Sweep deletes entries whose token has expired and returns how many were removed.
func (l *PostgresLedger) Sweep(ctx context.Context) (int, error) {
	const query = `DELETE FROM revoked_tokens WHERE expires_at <= $1`

	cmd, err := l.db.Exec(ctx, query, l.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(cmd.RowsAffected()), nil
}
