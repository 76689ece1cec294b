package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/research-portal/internal/domain"
)

// MemoryIdentityRepository keeps identities in process memory. It backs local
// development without Postgres and the HTTP contract tests.
type MemoryIdentityRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Identity
	byEmail map[string]string
}

// NewMemoryIdentityRepository returns an empty store.
func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{
		byID:    make(map[string]*domain.Identity),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryIdentityRepository) Create(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(identity.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrDuplicateEmail
	}

	now := time.Now().UTC()
	identity.ID = uuid.NewString()
	identity.Email = email
	identity.CreatedAt = now
	identity.UpdatedAt = now

	stored := *identity
	r.byID[stored.ID] = &stored
	r.byEmail[email] = stored.ID
	return nil
}

func (r *MemoryIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *identity
	return &clone, nil
}

func (r *MemoryIdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	r.mu.RLock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryIdentityRepository) SetRefreshToken(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	identity.RefreshTokenHash = hash
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryIdentityRepository) SwapRefreshToken(_ context.Context, id, expected, next string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok || identity.RefreshTokenHash != expected {
		return false, nil
	}
	identity.RefreshTokenHash = next
	identity.UpdatedAt = time.Now().UTC()
	return true, nil
}

// SetActive toggles the activity flag.
func (r *MemoryIdentityRepository) SetActive(id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	identity.Active = active
	return nil
}
