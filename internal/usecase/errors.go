package usecase

import "github.com/silver1334/lianxin/internal/core/domain"

// Failures shared across authentication flows. Credential problems collapse
// into one uniform error so callers cannot tell which part was wrong.
var (
	ErrInvalidCredentials     = domain.NewAuthError("invalid_credentials", "phone or password is incorrect")
	ErrAccountSuspended       = domain.NewAuthError("account_suspended", "account is suspended")
	ErrAccountNotFound        = domain.NewNotFoundError("account_not_found", "account does not exist")
	ErrSessionNotFound        = domain.NewNotFoundError("session_not_found", "session does not exist")
	ErrInvalidSession         = domain.NewAuthError("invalid_session", "session is missing, revoked or expired")
	ErrInvalidResetToken      = domain.NewAuthError("invalid_reset_token", "reset token is invalid or already used")
	ErrPhoneAlreadyRegistered = domain.NewConflictError("phone_already_registered", "phone number is already registered")
	ErrPasswordReused         = domain.NewValidationError("password_reused", "password was used recently")
)
