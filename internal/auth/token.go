package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/research-portal/internal/domain"
	"github.com/spec-kit/research-portal/internal/revocation"
	apperrors "github.com/spec-kit/research-portal/pkg/util"
)

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenService issues, verifies and rotates access/refresh token pairs.
// Access tokens are stateless; refresh tokens are checked against the ledger.
type TokenService struct {
	issuer        string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	ledger        revocation.Ledger
	now           func() time.Time
}

// NewTokenService builds a service. Missing or shared secrets are a deployment
// error and panic.
func NewTokenService(cfg TokenConfig, ledger revocation.Ledger) *TokenService {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		panic("auth: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		panic("auth: access and refresh secrets must differ")
	}
	if ledger == nil {
		panic("auth: revocation ledger is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		issuer:        cfg.Issuer,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		ledger:        ledger,
		now:           time.Now,
	}
}

// Claims describes the JWT payload shared by access and refresh tokens.
type Claims struct {
	SubjectID string      `json:"userId"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// AsSubject returns the claim set without the registered claims.
func (c *Claims) AsSubject() domain.Subject {
	return domain.Subject{ID: c.SubjectID, Email: c.Email, Role: c.Role}
}

// IssueTokenPair signs an access and a refresh token for the same subject.
// It has no side effects; persisting the refresh reference is the caller's job.
func (s *TokenService) IssueTokenPair(subject domain.Subject) (*domain.TokenPair, error) {
	now := s.now()

	access, accessExp, err := s.sign(subject, now, s.accessTTL, s.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.sign(subject, now, s.refreshTTL, s.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *TokenService) sign(subject domain.Subject, now time.Time, ttl time.Duration, secret []byte) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := &Claims{
		SubjectID: subject.ID,
		Email:     subject.Email,
		Role:      subject.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	// Expiry as encoded in the token, which has second precision.
	return signed, claims.ExpiresAt.Time, nil
}

// VerifyAccessToken checks signature and expiry only.
func (s *TokenService) VerifyAccessToken(token string) (*Claims, error) {
	return s.parse(token, s.accessSecret)
}

// VerifyRefreshToken checks signature, expiry and the revocation ledger.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parse(token, s.refreshSecret)
	if err != nil {
		return nil, err
	}

	revoked, err := s.ledger.IsRevoked(ctx, token)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if revoked {
		return nil, apperrors.ErrRevokedToken
	}
	return claims, nil
}

// RotateRefreshToken revokes oldToken until its own expiry and then issues a
// fresh pair for subject. The caller must already have verified oldToken.
// The revocation is written on a context detached from request cancellation
// so a disconnecting client cannot leave it half applied.
func (s *TokenService) RotateRefreshToken(ctx context.Context, oldToken string, subject domain.Subject) (*domain.TokenPair, error) {
	claims, err := s.parse(oldToken, s.refreshSecret)
	if err != nil {
		return nil, err
	}

	if err := s.BlacklistToken(context.WithoutCancel(ctx), oldToken, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	return s.IssueTokenPair(subject)
}

// BlacklistToken records token in the revocation ledger until expiresAt.
func (s *TokenService) BlacklistToken(ctx context.Context, token string, expiresAt time.Time) error {
	if err := s.ledger.Revoke(ctx, token, expiresAt); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// RefreshTTL is the lifetime of issued refresh tokens.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *TokenService) parse(tokenStr string, secret []byte) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SubjectID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// TokenFingerprint returns a short, non-reversible label for logging a token.
func TokenFingerprint(token string) string {
	return domain.HashToken(token)[:12]
}
