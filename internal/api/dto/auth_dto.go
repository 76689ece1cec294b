package dto

import "github.com/spec-kit/research-portal/internal/domain"

// AdminLoginRequest payload for admin login.
type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an identity.
type UserResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// NewUserResponse maps an identity to its public view.
func NewUserResponse(identity *domain.Identity) UserResponse {
	return UserResponse{
		ID:    identity.ID,
		Name:  identity.Name,
		Email: identity.Email,
		Role:  identity.Role,
	}
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken string       `json:"accessToken"`
	User        UserResponse `json:"user"`
}

// RefreshResponse is returned by a successful rotation.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// VerifyResponse identifies the bearer of a valid access token.
type VerifyResponse struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// MessageResponse carries a human readable acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// SessionResponse describes the authenticated principal of a guarded route.
type SessionResponse struct {
	User UserResponse `json:"user"`
}
