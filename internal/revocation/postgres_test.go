package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/research-portal/internal/domain"
)

func newPostgresLedger(t *testing.T) (*PostgresLedger, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresLedger(mock), mock
}

func TestPostgresLedger_Revoke(t *testing.T) {
	ledger, mock := newPostgresLedger(t)

	mock.ExpectExec(`INSERT INTO revoked_tokens .* ON CONFLICT \(token_hash\) DO NOTHING`).
		WithArgs(domain.HashToken("tok"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, ledger.Revoke(context.Background(), "tok", time.Now().Add(time.Hour)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_RevokeExpiredIsNoop(t *testing.T) {
	ledger, mock := newPostgresLedger(t)

	require.NoError(t, ledger.Revoke(context.Background(), "tok", time.Now().Add(-time.Hour)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_IsRevoked(t *testing.T) {
	ledger, mock := newPostgresLedger(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(domain.HashToken("tok"), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := ledger.IsRevoked(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_StoreFailure(t *testing.T) {
	ledger, mock := newPostgresLedger(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(domain.HashToken("tok"), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := ledger.IsRevoked(context.Background(), "tok")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestPostgresLedger_Sweep(t *testing.T) {
	ledger, mock := newPostgresLedger(t)

	mock.ExpectExec(`DELETE FROM revoked_tokens WHERE expires_at <= \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := ledger.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
