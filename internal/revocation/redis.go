package revocation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/research-portal/internal/domain"
)

// RedisLedger stores revocations as keys whose TTL is the token's remaining lifetime.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisLedger creates a [RedisLedger] under the given key prefix.
func NewRedisLedger(client redis.UniversalClient, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisLedger{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisLedger) key(token string) string {
	return l.prefix + ":" + domain.HashToken(token)
}

func (l *RedisLedger) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := remaining(expiresAt, l.now)
	if ttl <= 0 {
		return nil
	}
	// SET NX keeps the first revocation's TTL; a later duplicate carries the same expiry anyway.
	if err := l.client.SetNX(ctx, l.key(token), strconv.FormatInt(expiresAt.Unix(), 10), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (l *RedisLedger) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}
