package revocation

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/spec-kit/research-portal/internal/domain"
)

// MemoryLedger is a process-local ledger for development and tests.
// Restarting the process forgets every revocation.
type MemoryLedger struct {
	cache *ttlcache.Cache[string, time.Time]
	now   func() time.Time
}

// NewMemoryLedger starts a ttlcache-backed ledger. Call Close to stop its cleanup goroutine.
func NewMemoryLedger() *MemoryLedger {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	)
	go cache.Start()

	return &MemoryLedger{cache: cache, now: time.Now}
}

func (l *MemoryLedger) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	ttl := remaining(expiresAt, l.now)
	if ttl <= 0 {
		return nil
	}
	l.cache.Set(domain.HashToken(token), expiresAt, ttl)
	return nil
}

func (l *MemoryLedger) IsRevoked(_ context.Context, token string) (bool, error) {
	return l.cache.Get(domain.HashToken(token)) != nil, nil
}

// Len returns the number of live entries.
func (l *MemoryLedger) Len() int {
	return l.cache.Len()
}

// Close stops the background expiry loop.
func (l *MemoryLedger) Close() {
	l.cache.Stop()
}
