package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/research-portal/internal/domain"
	"github.com/spec-kit/research-portal/internal/persistence"
)

var (
	// ErrNotFound is returned when no identity matches the lookup.
	ErrNotFound = errors.New("identity not found")
	// ErrDuplicateEmail is returned by Create when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// IdentityRepository is the credential store.
//
// The refresh reference is a single-writer slot: login overwrites it with
// SetRefreshToken, while rotation and logout go through SwapRefreshToken so a
// concurrent writer that already replaced the value makes the swap fail.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	SetRefreshToken(ctx context.Context, id, hash string) error
	// SwapRefreshToken replaces expected with next and reports whether the
	// stored value still equalled expected. An empty next clears the slot.
	SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
}

type postgresIdentityRepository struct {
	db persistence.DBTX
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(db persistence.DBTX) IdentityRepository {
	return &postgresIdentityRepository{db: db}
}

const uniqueViolation = "23505"

func (r *postgresIdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO identities (name, email, password_hash, role, is_active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	identity.Email = domain.NormalizeEmail(identity.Email)
	err := r.db.QueryRow(ctx, query,
		identity.Name,
		identity.Email,
		identity.PasswordHash,
		identity.Role,
		identity.Active,
	).Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

const selectIdentity = `
        SELECT id, name, email, password_hash, role, is_active,
               COALESCE(refresh_token_hash, ''), created_at, updated_at
        FROM identities`

func (r *postgresIdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectIdentity+" WHERE id=$1", id))
}

func (r *postgresIdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectIdentity+" WHERE email=$1", domain.NormalizeEmail(email)))
}

func (r *postgresIdentityRepository) scanOne(row pgx.Row) (*domain.Identity, error) {
	var identity domain.Identity
	if err := row.Scan(
		&identity.ID,
		&identity.Name,
		&identity.Email,
		&identity.PasswordHash,
		&identity.Role,
		&identity.Active,
		&identity.RefreshTokenHash,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &identity, nil
}

func (r *postgresIdentityRepository) SetRefreshToken(ctx context.Context, id, hash string) error {
	const query = `
        UPDATE identities SET refresh_token_hash=$2, updated_at=NOW()
        WHERE id=$1`

	cmd, err := r.db.Exec(ctx, query, id, nullable(hash))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresIdentityRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	const query = `
        UPDATE identities SET refresh_token_hash=$3, updated_at=NOW()
        WHERE id=$1 AND refresh_token_hash IS NOT DISTINCT FROM $2`

	cmd, err := r.db.Exec(ctx, query, id, nullable(expected), nullable(next))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
