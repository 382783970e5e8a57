package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/transport/http/middleware"
	"github.com/silver1334/lianxin/internal/usecase"
)

// AuthHandler serves login, token refresh and logout.
type AuthHandler struct {
	auth *usecase.AuthService
	log  *zap.Logger
}

// NewAuthHandler wires the authentication endpoints.
func NewAuthHandler(auth *usecase.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

// Login authenticates a phone/password pair and opens a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Phone:       req.Phone,
		CountryCode: req.CountryCode,
		Password:    req.Password,
		DeviceID:    req.DeviceID,
		DeviceName:  req.DeviceName,
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(result))
}

// Refresh rotates a refresh token and returns a fresh pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(result))
}

// Logout revokes the calling session.
func (h *AuthHandler) Logout(c *gin.Context) {
	accountUUID := c.GetString(middleware.AccountUUIDKey)
	sessionID := c.GetString(middleware.SessionIDKey)

	if err := h.auth.Logout(c.Request.Context(), accountUUID, sessionID); err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// LogoutAll revokes every session except the calling one.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	accountUUID := c.GetString(middleware.AccountUUIDKey)
	sessionID := c.GetString(middleware.SessionIDKey)

	revoked, err := h.auth.LogoutAll(c.Request.Context(), accountUUID, sessionID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked_sessions": revoked})
}

func newAuthResponse(result *usecase.AuthResult) AuthResponse {
	return AuthResponse{
		AccountID: result.AccountUUID,
		SessionID: result.SessionID,
		Tokens: TokenPairResponse{
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    int64(time.Until(result.Tokens.AccessExpiresAt).Seconds()),
		},
	}
}
