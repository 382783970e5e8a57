package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/silver1334/lianxin/internal/transport/http/middleware"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse builds an error payload carrying the request correlation id.
func NewErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: middleware.RequestIDFromContext(c.Request.Context()),
	}
}

// MessageResponse is a simple acknowledgement payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenPairResponse carries an issued access/refresh pair.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	AccountID string            `json:"account_id"`
	SessionID string            `json:"session_id"`
	Tokens    TokenPairResponse `json:"tokens"`
}

// SendOTPRequest asks for a verification code.
type SendOTPRequest struct {
	Phone       string `json:"phone" binding:"required"`
	CountryCode string `json:"country_code" binding:"required"`
	Purpose     string `json:"purpose" binding:"required"`
}

// SendOTPResponse acknowledges an issued challenge.
type SendOTPResponse struct {
	VerificationID string    `json:"verification_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// VerifyOTPRequest submits a code for an open challenge.
type VerifyOTPRequest struct {
	VerificationID string `json:"verification_id" binding:"required"`
	Phone          string `json:"phone" binding:"required"`
	CountryCode    string `json:"country_code" binding:"required"`
	Code           string `json:"code" binding:"required"`
}

// VerifyOTPResponse reports a consumed challenge.
type VerifyOTPResponse struct {
	Verified bool   `json:"verified"`
	Purpose  string `json:"purpose"`
}

// RegisterRequest creates an account for an OTP-verified phone.
type RegisterRequest struct {
	Phone          string `json:"phone" binding:"required"`
	CountryCode    string `json:"country_code" binding:"required"`
	Password       string `json:"password" binding:"required"`
	VerificationID string `json:"verification_id" binding:"required"`
	Code           string `json:"code" binding:"required"`
	DeviceID       string `json:"device_id" binding:"required"`
	DeviceName     string `json:"device_name"`
}

// LoginRequest authenticates with phone and password.
type LoginRequest struct {
	Phone       string `json:"phone" binding:"required"`
	CountryCode string `json:"country_code" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DeviceID    string `json:"device_id" binding:"required"`
	DeviceName  string `json:"device_name"`
}

// RefreshRequest rotates a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangePasswordRequest replaces the password of the authenticated account.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ResetRequestRequest exchanges a verified OTP for a reset token.
type ResetRequestRequest struct {
	Phone          string `json:"phone" binding:"required"`
	CountryCode    string `json:"country_code" binding:"required"`
	VerificationID string `json:"verification_id" binding:"required"`
	Code           string `json:"code" binding:"required"`
}

// ResetRequestResponse carries the short-lived reset token.
type ResetRequestResponse struct {
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ResetConfirmRequest finishes a password reset.
type ResetConfirmRequest struct {
	ResetToken  string `json:"reset_token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// SuspendRequest places an account under suspension.
type SuspendRequest struct {
	Reason       string `json:"reason" binding:"required"`
	DurationDays int    `json:"duration_days"`
}

// DeactivateRequest soft-closes the authenticated account.
type DeactivateRequest struct {
	Reason string `json:"reason"`
}

// SessionSummary is the API view of a session.
type SessionSummary struct {
	SessionID    string     `json:"session_id"`
	DeviceID     string     `json:"device_id"`
	DeviceName   string     `json:"device_name,omitempty"`
	IP           string     `json:"ip,omitempty"`
	Active       bool       `json:"active"`
	LastActiveAt time.Time  `json:"last_active_at"`
	CreatedAt    time.Time  `json:"created_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason *string    `json:"revoke_reason,omitempty"`
}

// SessionListResponse wraps the session collection.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}
