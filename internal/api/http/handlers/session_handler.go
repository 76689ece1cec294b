package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/research-portal/internal/api/dto"
	"github.com/spec-kit/research-portal/internal/auth"
	apperrors "github.com/spec-kit/research-portal/pkg/util"
)

// SessionHandler serves guarded probes that echo the authenticated principal.
type SessionHandler struct{}

// NewSessionHandler constructs handler.
func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Current handles GET /admin/session and GET /researcher/session.
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.ErrMissingCredential
	}
	return c.JSON(dto.SessionResponse{User: dto.NewUserResponse(principal)})
}
