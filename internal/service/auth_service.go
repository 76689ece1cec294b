package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/research-portal/internal/auth"
	"github.com/spec-kit/research-portal/internal/config"
	"github.com/spec-kit/research-portal/internal/domain"
	"github.com/spec-kit/research-portal/internal/events"
	"github.com/spec-kit/research-portal/internal/observability"
	"github.com/spec-kit/research-portal/internal/repository"
	apperrors "github.com/spec-kit/research-portal/pkg/util"
)

// errInvalidCredentials is shared by every login failure so responses do not
// reveal whether the account exists, has another role, or the password was wrong.
var errInvalidCredentials = apperrors.NewUnauthorized("invalid email or password")

// Session is the outcome of a login or rotation.
type Session struct {
	Identity *domain.Identity
	Tokens   *domain.TokenPair
}

// AuthService coordinates the session lifecycle: login, rotation and logout.
type AuthService struct {
	identities repository.IdentityRepository
	tokens     *auth.TokenService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	binding    string
	bcryptCost int
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	Identities repository.IdentityRepository
	Tokens     *auth.TokenService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	binding := cfg.RefreshBinding
	if binding == "" {
		binding = config.BindingStrict
	}
	return &AuthService{
		identities: deps.Identities,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		binding:    binding,
		bcryptCost: cfg.BcryptCost,
	}
}

// AdminLogin authenticates an administrator and opens a session.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		auth.ComparePasswordDummy(password, s.bcryptCost)
		s.metrics.RecordLogin("rejected")
		return nil, errInvalidCredentials
	}

	if err := auth.ComparePassword(identity.PasswordHash, password); err != nil || identity.Role != domain.RoleAdmin {
		s.metrics.RecordLogin("rejected")
		return nil, errInvalidCredentials
	}

	pair, err := s.tokens.IssueTokenPair(domain.SubjectOf(identity))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	// A new login supersedes whatever session the identity had before.
	if err := s.identities.SetRefreshToken(context.WithoutCancel(ctx), identity.ID, domain.HashToken(pair.RefreshToken)); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	identity.RefreshTokenHash = domain.HashToken(pair.RefreshToken)

	s.metrics.RecordLogin("success")
	s.publish(ctx, events.NewEvent(events.EventSessionStarted, identity.ID, events.SessionStartedPayload{
		Name:  identity.Name,
		Email: identity.Email,
		Role:  identity.Role,
	}))
	return &Session{Identity: identity, Tokens: pair}, nil
}

// Refresh rotates a refresh token into a new pair.
func (s *AuthService) Refresh(ctx context.Context, token string) (*Session, error) {
	session, outcome, err := s.refresh(ctx, token)
	s.metrics.RecordRefresh(outcome)
	return session, err
}

func (s *AuthService) refresh(ctx context.Context, token string) (*Session, string, error) {
	if token == "" {
		return nil, "missing", apperrors.ErrMissingCredential
	}

	claims, err := s.tokens.VerifyRefreshToken(ctx, token)
	if err != nil {
		return nil, outcomeOf(err), err
	}

	identity, err := s.identities.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "unknown_subject", apperrors.ErrUnknownSubject
		}
		return nil, "error", apperrors.NewInternalError(err)
	}
	if err := auth.Authorize(identity, auth.Require(auth.CapabilityAuthenticated)); err != nil {
		return nil, outcomeOf(err), err
	}

	presented := domain.HashToken(token)
	strict := s.binding == config.BindingStrict
	if strict && identity.RefreshTokenHash != presented {
		s.revokeReused(ctx, identity, token, claims)
		return nil, "reuse", apperrors.ErrRevokedToken
	}

	pair, err := s.tokens.RotateRefreshToken(ctx, token, domain.SubjectOf(identity))
	if err != nil {
		return nil, "error", err
	}
	s.metrics.RecordRevocation("rotation")

	next := domain.HashToken(pair.RefreshToken)
	store := context.WithoutCancel(ctx)
	if strict {
		swapped, err := s.identities.SwapRefreshToken(store, identity.ID, presented, next)
		if err != nil {
			return nil, "error", apperrors.NewInternalError(err)
		}
		if !swapped {
			// Another request rotated the same token first; this pair must not survive.
			if err := s.tokens.BlacklistToken(store, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
				s.logger.Error("failed to revoke losing rotation", zap.String("subject_id", identity.ID), zap.Error(err))
			}
			s.logger.Info("concurrent refresh lost the race",
				zap.String("subject_id", identity.ID),
				zap.String("token", auth.TokenFingerprint(token)))
			return nil, "race_lost", apperrors.ErrRevokedToken
		}
	} else if err := s.identities.SetRefreshToken(store, identity.ID, next); err != nil {
		return nil, "error", apperrors.NewInternalError(err)
	}
	identity.RefreshTokenHash = next

	s.publish(ctx, events.NewEvent(events.EventSessionRotated, identity.ID, events.SessionRotatedPayload{Binding: s.binding}))
	return &Session{Identity: identity, Tokens: pair}, "success", nil
}

// revokeReused handles a valid, unrevoked refresh token that is no longer the
// identity's current one. The identity's live session is left untouched.
func (s *AuthService) revokeReused(ctx context.Context, identity *domain.Identity, token string, claims *auth.Claims) {
	fingerprint := auth.TokenFingerprint(token)
	s.logger.Warn("refresh token reuse detected",
		zap.String("subject_id", identity.ID),
		zap.String("token", fingerprint))

	if err := s.tokens.BlacklistToken(context.WithoutCancel(ctx), token, claims.ExpiresAt.Time); err != nil {
		s.logger.Error("failed to revoke reused refresh token", zap.String("subject_id", identity.ID), zap.Error(err))
	} else {
		s.metrics.RecordRevocation("reuse")
	}
	s.publish(ctx, events.NewEvent(events.EventRefreshReuseDetected, identity.ID, events.RefreshReuseDetectedPayload{
		Fingerprint: fingerprint,
	}))
}

// Logout revokes the presented refresh token and clears the identity's session.
// It never fails: a missing, invalid or already revoked token is a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}

	claims, err := s.tokens.VerifyRefreshToken(ctx, token)
	if err != nil {
		if apperrors.IsOperational(err) {
			s.logger.Debug("logout with unusable refresh token", zap.Error(err))
		} else {
			s.logger.Warn("logout could not verify refresh token", zap.Error(err))
		}
		return
	}

	store := context.WithoutCancel(ctx)
	if err := s.tokens.BlacklistToken(store, token, claims.ExpiresAt.Time); err != nil {
		s.logger.Warn("logout could not revoke refresh token", zap.String("subject_id", claims.SubjectID), zap.Error(err))
	} else {
		s.metrics.RecordRevocation("logout")
	}
	if _, err := s.identities.SwapRefreshToken(store, claims.SubjectID, domain.HashToken(token), ""); err != nil {
		s.logger.Warn("logout could not clear session reference", zap.String("subject_id", claims.SubjectID), zap.Error(err))
	}

	s.publish(ctx, events.NewEvent(events.EventSessionRevoked, claims.SubjectID, events.SessionRevokedPayload{Reason: "logout"}))
}

// SeedAdmin creates the administrator account if the email is not taken yet.
// The boolean reports whether a new identity was created.
func (s *AuthService) SeedAdmin(ctx context.Context, name, email, password string) (*domain.Identity, bool, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, false, apperrors.NewValidationError("admin email and password are required", nil)
	}

	existing, err := s.identities.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, false, err
	}
	identity := &domain.Identity{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			existing, getErr := s.identities.GetByEmail(ctx, email)
			return existing, false, getErr
		}
		return nil, false, err
	}
	return identity, true, nil
}

// publish delivers an event; notification failures never fail the session operation.
func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("subject_id", event.SubjectID),
			zap.Error(err))
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidToken):
		return "invalid"
	case errors.Is(err, apperrors.ErrRevokedToken):
		return "revoked"
	case errors.Is(err, apperrors.ErrInactiveAccount):
		return "inactive"
	case errors.Is(err, apperrors.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
