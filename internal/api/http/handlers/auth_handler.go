package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/research-portal/internal/api/dto"
	"github.com/spec-kit/research-portal/internal/auth"
	"github.com/spec-kit/research-portal/internal/service"
	apperrors "github.com/spec-kit/research-portal/pkg/util"
)

// AuthHandler exposes the session lifecycle endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	cookies *auth.CookieCodec
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookies *auth.CookieCodec) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies}
}

// AdminLogin handles POST /auth/admin-login.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	session, err := h.auth.AdminLogin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.cookies.SetRefreshCookie(c, session.Tokens.RefreshToken)
	return c.JSON(dto.LoginResponse{
		AccessToken: session.Tokens.AccessToken,
		User:        dto.NewUserResponse(session.Identity),
	})
}

// Refresh handles POST /auth/refresh. The refresh token arrives only as a cookie.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	session, err := h.auth.Refresh(c.UserContext(), h.cookies.ReadRefreshCookie(c))
	if err != nil {
		return err
	}

	h.cookies.SetRefreshCookie(c, session.Tokens.RefreshToken)
	return c.JSON(dto.RefreshResponse{AccessToken: session.Tokens.AccessToken})
}

// Logout handles POST /auth/logout. It always succeeds and always clears the cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.auth.Logout(c.UserContext(), h.cookies.ReadRefreshCookie(c))
	h.cookies.ClearRefreshCookie(c)
	return c.JSON(dto.MessageResponse{Message: "logged out"})
}

// Verify handles GET /auth/verify behind the auth middleware.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.ErrMissingCredential
	}
	return c.JSON(dto.VerifyResponse{ID: principal.ID, Role: principal.Role})
}
