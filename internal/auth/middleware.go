package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/research-portal/internal/domain"
	"github.com/spec-kit/research-portal/internal/repository"
	apperrors "github.com/spec-kit/research-portal/pkg/util"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens     *TokenService
	identities repository.IdentityRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenService, identities repository.IdentityRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, identities: identities}
}

// Require returns a handler admitting callers that hold every capability.
// With no capabilities it admits any authenticated caller.
func (m *AuthMiddleware) Require(caps ...Capability) fiber.Handler {
	required := Require(caps...)
	if required == 0 {
		required = Require(CapabilityAuthenticated)
	}

	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}

		claims, err := m.tokens.VerifyAccessToken(token)
		if err != nil {
			return err
		}

		identity, err := m.identities.GetByID(c.UserContext(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.ErrUnknownSubject
			}
			return apperrors.NewInternalError(err)
		}

		if err := Authorize(identity, required); err != nil {
			return err
		}

		c.Locals(principalKey, identity)
		return c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.ErrMissingCredential
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperrors.ErrMissingCredential
	}
	return token, nil
}

// PrincipalFromContext retrieves the authenticated identity.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Identity)
	return principal, ok && principal != nil
}
