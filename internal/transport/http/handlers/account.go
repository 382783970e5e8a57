package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/transport/http/middleware"
	"github.com/silver1334/lianxin/internal/usecase"
)

// AccountHandler serves self-service lifecycle actions.
type AccountHandler struct {
	admin *usecase.AccountAdminService
	log   *zap.Logger
}

// NewAccountHandler wires the account lifecycle endpoints.
func NewAccountHandler(admin *usecase.AccountAdminService, log *zap.Logger) *AccountHandler {
	return &AccountHandler{admin: admin, log: log}
}

// Deactivate soft-closes the authenticated account. A later login
// reactivates it.
func (h *AccountHandler) Deactivate(c *gin.Context) {
	var req DeactivateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
	}

	err := h.admin.Deactivate(c.Request.Context(), c.GetString(middleware.AccountUUIDKey), req.Reason)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account deactivated"})
}

// ScheduleDeletion marks the authenticated account for purge after the
// grace period. Logging in during the grace period cancels it.
func (h *AccountHandler) ScheduleDeletion(c *gin.Context) {
	purgeAt, err := h.admin.ScheduleDeletion(c.Request.Context(), c.GetString(middleware.AccountUUIDKey))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "deletion scheduled",
		"purge_at": purgeAt.Format(time.RFC3339),
	})
}
