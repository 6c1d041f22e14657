package model

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type RoleUpdateRequest struct {
	Role string `json:"role"`
}

// AuthUser is the identity attached to an authenticated request.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type TokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type MeResponse struct {
	User  AuthUser `json:"user"`
	Token string   `json:"token,omitempty"`
}

type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}
