package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/usecase"
)

// RegistrationHandler serves account creation.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
	log          *zap.Logger
}

// NewRegistrationHandler wires the registration endpoint.
func NewRegistrationHandler(registration *usecase.RegistrationService, log *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{registration: registration, log: log}
}

// Register creates an account for an OTP-verified phone and opens the
// first session.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Phone:          req.Phone,
		CountryCode:    req.CountryCode,
		Password:       req.Password,
		VerificationID: req.VerificationID,
		Code:           req.Code,
		DeviceID:       req.DeviceID,
		DeviceName:     req.DeviceName,
		IP:             c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newAuthResponse(result))
}
