package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/research-portal/internal/domain"
)

func newRedisLedger(t *testing.T) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLedger(rdb, "revoked"), mr
}

func TestRedisLedger_RevokeAndLookup(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	ctx := context.Background()

	revoked, err := ledger.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, ledger.Revoke(ctx, "token-a", time.Now().Add(time.Hour)))

	revoked, err = ledger.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = ledger.IsRevoked(ctx, "token-b")
	require.NoError(t, err)
	assert.False(t, revoked)

	key := "revoked:" + domain.HashToken("token-a")
	assert.True(t, mr.Exists(key), "raw token must not be used as key")
	ttl := mr.TTL(key)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestRedisLedger_EntryExpiresWithToken(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Revoke(ctx, "short-lived", time.Now().Add(2*time.Minute)))
	mr.FastForward(3 * time.Minute)

	revoked, err := ledger.IsRevoked(ctx, "short-lived")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisLedger_SkipsExpiredTokens(t *testing.T) {
	ledger, mr := newRedisLedger(t)

	require.NoError(t, ledger.Revoke(context.Background(), "stale", time.Now().Add(-time.Second)))
	assert.Empty(t, mr.Keys())
}

func TestRedisLedger_RevokeIsIdempotent(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, ledger.Revoke(ctx, "dup", exp))
	require.NoError(t, ledger.Revoke(ctx, "dup", exp))
	assert.Len(t, mr.Keys(), 1)
}

func TestRedisLedger_StoreFailure(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	mr.Close()

	_, err := ledger.IsRevoked(context.Background(), "token")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	err = ledger.Revoke(context.Background(), "token", time.Now().Add(time.Hour))
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
