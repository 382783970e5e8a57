package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/usecase"
)

// OTPHandler serves verification code issuance and standalone verification.
type OTPHandler struct {
	otp *usecase.OTPService
	log *zap.Logger
}

// NewOTPHandler wires the OTP endpoints.
func NewOTPHandler(otp *usecase.OTPService, log *zap.Logger) *OTPHandler {
	return &OTPHandler{otp: otp, log: log}
}

// Send issues a verification code for the given phone and purpose.
func (h *OTPHandler) Send(c *gin.Context) {
	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	receipt, err := h.otp.Send(c.Request.Context(), usecase.SendOTPInput{
		Phone:       req.Phone,
		CountryCode: req.CountryCode,
		Purpose:     req.Purpose,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, SendOTPResponse{
		VerificationID: receipt.VerificationID,
		ExpiresAt:      receipt.ExpiresAt,
	})
}

// Verify consumes an open challenge. Flows that need the verification
// downstream (register, password reset) submit the code inline instead.
func (h *OTPHandler) Verify(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	verification, err := h.otp.Verify(c.Request.Context(), usecase.VerifyOTPInput{
		VerificationID: req.VerificationID,
		Phone:          req.Phone,
		CountryCode:    req.CountryCode,
		Code:           req.Code,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, VerifyOTPResponse{
		Verified: true,
		Purpose:  string(verification.Purpose),
	})
}
