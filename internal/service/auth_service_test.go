package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/research-portal/internal/auth"
	"github.com/spec-kit/research-portal/internal/config"
	"github.com/spec-kit/research-portal/internal/domain"
	"github.com/spec-kit/research-portal/internal/events"
	"github.com/spec-kit/research-portal/internal/observability"
	"github.com/spec-kit/research-portal/internal/repository"
	"github.com/spec-kit/research-portal/internal/revocation"
	apperrors "github.com/spec-kit/research-portal/pkg/util"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "correct horse battery staple"
)

type fixture struct {
	svc        *AuthService
	tokens     *auth.TokenService
	identities *repository.MemoryIdentityRepository
	dispatcher events.Dispatcher
	logs       *observer.ObservedLogs
	admin      *domain.Identity
}

func newFixture(t *testing.T, binding string) *fixture {
	t.Helper()

	ledger := revocation.NewMemoryLedger()
	t.Cleanup(ledger.Close)
	tokens := auth.NewTokenService(auth.TokenConfig{
		Issuer:        "research-portal",
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, ledger)

	core, logs := observer.New(zapcore.DebugLevel)
	identities := repository.NewMemoryIdentityRepository()
	dispatcher := events.NewInMemoryDispatcher()

	svc := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost, RefreshBinding: binding}, AuthDependencies{
		Identities: identities,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     zap.New(core),
		Metrics:    observability.NewMetrics(),
	})

	admin, created, err := svc.SeedAdmin(context.Background(), "Admin", adminEmail, adminPassword)
	require.NoError(t, err)
	require.True(t, created)

	return &fixture{svc: svc, tokens: tokens, identities: identities, dispatcher: dispatcher, logs: logs, admin: admin}
}

func (f *fixture) login(t *testing.T) *Session {
	t.Helper()
	session, err := f.svc.AdminLogin(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)
	return session
}

func (f *fixture) pointer(t *testing.T, id string) string {
	t.Helper()
	identity, err := f.identities.GetByID(context.Background(), id)
	require.NoError(t, err)
	return identity.RefreshTokenHash
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t, config.BindingStrict)

	session := f.login(t)
	assert.Equal(t, f.admin.ID, session.Identity.ID)
	assert.NotEmpty(t, session.Tokens.AccessToken)
	assert.Equal(t, domain.HashToken(session.Tokens.RefreshToken), f.pointer(t, f.admin.ID))

	claims, err := f.tokens.VerifyAccessToken(session.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestAdminLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, config.BindingStrict)
	ctx := context.Background()

	hash, err := auth.HashPassword("researcher-password", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.identities.Create(ctx, &domain.Identity{
		Name: "R", Email: "r@example.com", PasswordHash: hash, Role: domain.RoleResearcher, Active: true,
	}))

	attempts := []struct{ email, password string }{
		{"nobody@example.com", adminPassword},
		{adminEmail, "wrong"},
		{"r@example.com", "researcher-password"},
	}

	for _, a := range attempts {
		_, err := f.svc.AdminLogin(ctx, a.email, a.password)
		de := apperrors.ToDomainError(err)
		assert.Equal(t, 401, de.HTTPStatus)
		assert.Equal(t, "invalid email or password", de.Message)
	}

	_, err = f.svc.AdminLogin(ctx, "", "")
	assert.Equal(t, 400, apperrors.ToDomainError(err).HTTPStatus)
}

func TestLoginSurvivesNotificationFailure(t *testing.T) {
	f := newFixture(t, config.BindingStrict)
	f.dispatcher.Subscribe(events.EventSessionStarted, func(context.Context, events.Event) error {
		return errors.New("smtp unavailable")
	})

	session, err := f.svc.AdminLogin(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)
	assert.NotNil(t, session)
	assert.Equal(t, 1, f.logs.FilterMessage("event handler failed").Len())
}

func TestRefreshRotates(t *testing.T) {
	f := newFixture(t, config.BindingStrict)
	ctx := context.Background()
	first := f.login(t)

	second, err := f.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)
	assert.Equal(t, domain.HashToken(second.Tokens.RefreshToken), f.pointer(t, f.admin.ID))

	_, err = f.svc.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)

	third, err := f.svc.Refresh(ctx, second.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, third.Tokens.AccessToken)
}

func TestRefreshRejections(t *testing.T) {
	f := newFixture(t, config.BindingStrict)
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrMissingCredential)

	_, err = f.svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	session := f.login(t)
	_, err = f.svc.Refresh(ctx, session.Tokens.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	ghost, err := f.tokens.IssueTokenPair(domain.Subject{ID: "missing", Email: "x@example.com", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, ghost.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrUnknownSubject)
}

func TestRefreshRejectsInactiveResearcher(t *testing.T) {
	f := newFixture(t, config.BindingStrict)
	ctx := context.Background()

	researcher := &domain.Identity{Name: "R", Email: "r@example.com", Role: domain.RoleResearcher, Active: true}
	require.NoError(t, f.identities.Create(ctx, researcher))
	pair, err := f.tokens.IssueTokenPair(domain.SubjectOf(researcher))
	require.NoError(t, err)
	require.NoError(t, f.identities.SetRefreshToken(ctx, researcher.ID, domain.HashToken(pair.RefreshToken)))
	require.NoError(t, f.identities.SetActive(researcher.ID, false))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrInactiveAccount)
}

func TestStrictBindingDetectsReuse(t *testing.T) {
	f := newFixture(t, config.BindingStrict)
	ctx := context.Background()

	stale := f.login(t)
	current := f.login(t)

	_, err := f.svc.Refresh(ctx, stale.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)
	assert.Equal(t, 1, f.logs.FilterMessage("refresh token reuse detected").Len())

	_, err = f.tokens.VerifyRefreshToken(ctx, stale.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken, "reused token is revoked")

	assert.Equal(t, domain.HashToken(current.Tokens.RefreshToken), f.pointer(t, f.admin.ID))
	_, err = f.svc.Refresh(ctx, current.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestLedgerBindingSkipsPointerCheck(t *testing.T) {
	f := newFixture(t, config.BindingLedger)
	ctx := context.Background()

	stale := f.login(t)
	f.login(t)

	session, err := f.svc.Refresh(ctx, stale.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, domain.HashToken(session.Tokens.RefreshToken), f.pointer(t, f.admin.ID))

	_, err = f.svc.Refresh(ctx, stale.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)
}

type rotationResult struct {
	session *Session
	err     error
}

func rotateConcurrently(f *fixture, token string, n int) []rotationResult {
	results := make([]rotationResult, n)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			session, err := f.svc.Refresh(context.Background(), token)
			results[i] = rotationResult{session: session, err: err}
		}(i)
	}
	close(start)
	wg.Wait()
	return results
}

func TestConcurrentRotationStrictHasSingleWinner(t *testing.T) {
	f := newFixture(t, config.BindingStrict)
	ctx := context.Background()
	original := f.login(t)

	results := rotateConcurrently(f, original.Tokens.RefreshToken, 16)

	var winners []*Session
	for _, r := range results {
		if r.err == nil {
			winners = append(winners, r.session)
			continue
		}
		assert.ErrorIs(t, r.err, apperrors.ErrRevokedToken)
	}
	require.Len(t, winners, 1)

	winner := winners[0]
	assert.Equal(t, domain.HashToken(winner.Tokens.RefreshToken), f.pointer(t, f.admin.ID))

	_, err := f.tokens.VerifyRefreshToken(ctx, original.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)

	_, err = f.svc.Refresh(ctx, winner.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestConcurrentRotationLedgerMayOrphanTokens(t *testing.T) {
	f := newFixture(t, config.BindingLedger)
	ctx := context.Background()
	original := f.login(t)

	results := rotateConcurrently(f, original.Tokens.RefreshToken, 16)

	issued := map[string]bool{}
	for _, r := range results {
		if r.err == nil {
			issued[domain.HashToken(r.session.Tokens.RefreshToken)] = true
			continue
		}
		assert.ErrorIs(t, r.err, apperrors.ErrRevokedToken)
	}
	require.NotEmpty(t, issued)
	assert.True(t, issued[f.pointer(t, f.admin.ID)], "pointer references one of the issued tokens")

	_, err := f.tokens.VerifyRefreshToken(ctx, original.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, config.BindingStrict)
	ctx := context.Background()
	session := f.login(t)

	f.svc.Logout(ctx, session.Tokens.RefreshToken)

	assert.Empty(t, f.pointer(t, f.admin.ID))
	_, err := f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)

	assert.NotPanics(t, func() {
		f.svc.Logout(ctx, session.Tokens.RefreshToken)
		f.svc.Logout(ctx, "")
		f.svc.Logout(ctx, "garbage")
	})
}

func TestLogoutWithStaleTokenKeepsCurrentSession(t *testing.T) {
	f := newFixture(t, config.BindingStrict)
	ctx := context.Background()

	stale := f.login(t)
	current := f.login(t)

	f.svc.Logout(ctx, stale.Tokens.RefreshToken)
	assert.Equal(t, domain.HashToken(current.Tokens.RefreshToken), f.pointer(t, f.admin.ID))
}

func TestLogoutSurvivesCancelledContext(t *testing.T) {
	f := newFixture(t, config.BindingStrict)
	session := f.login(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.svc.Logout(ctx, session.Tokens.RefreshToken)

	assert.Empty(t, f.pointer(t, f.admin.ID))
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	f := newFixture(t, config.BindingStrict)

	identity, created, err := f.svc.SeedAdmin(context.Background(), "Other", " ADMIN@example.com ", "another-password")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, f.admin.ID, identity.ID)

	_, _, err = f.svc.SeedAdmin(context.Background(), "x", "", "")
	assert.Error(t, err)
}
