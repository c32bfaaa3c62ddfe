package auth

import "github.com/kariteco/storefront-core/internal/users"

// LoginRequest carries the credentials posted to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterRequest carries the fields posted to the register endpoint.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

// ForgotPasswordRequest asks for a password-reset email.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest redeems a reset token for a new password.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// VerifyEmailRequest redeems an email-verification token.
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// AuthResponse is returned by login, register, and refresh.
type AuthResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user,omitempty"`
}
