package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/transport/http/middleware"
	"github.com/silver1334/lianxin/internal/usecase"
)

// PasswordHandler serves password change and the two-step reset flow.
type PasswordHandler struct {
	passwords *usecase.PasswordService
	log       *zap.Logger
}

// NewPasswordHandler wires the password endpoints.
func NewPasswordHandler(passwords *usecase.PasswordService, log *zap.Logger) *PasswordHandler {
	return &PasswordHandler{passwords: passwords, log: log}
}

// Change replaces the password of the authenticated account. Every other
// session is revoked; the calling session survives.
func (h *PasswordHandler) Change(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	err := h.passwords.Change(c.Request.Context(), usecase.ChangePasswordInput{
		AccountUUID:     c.GetString(middleware.AccountUUIDKey),
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		KeepSessionID:   c.GetString(middleware.SessionIDKey),
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}

// RequestReset exchanges a verified OTP challenge for a short-lived
// reset token.
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req ResetRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ticket, err := h.passwords.RequestReset(c.Request.Context(), usecase.ResetRequestInput{
		Phone:          req.Phone,
		CountryCode:    req.CountryCode,
		VerificationID: req.VerificationID,
		Code:           req.Code,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ResetRequestResponse{
		ResetToken: ticket.ResetToken,
		ExpiresAt:  ticket.ExpiresAt,
	})
}

// ConfirmReset finishes a reset. All sessions are revoked.
func (h *PasswordHandler) ConfirmReset(c *gin.Context) {
	var req ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	err := h.passwords.ConfirmReset(c.Request.Context(), usecase.ConfirmResetInput{
		ResetToken:  req.ResetToken,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password reset"})
}
