package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/transport/http/middleware"
	"github.com/silver1334/lianxin/internal/usecase"
)

// AdminHandler serves moderation actions on accounts. Routes using it
// are guarded by RequireRole.
type AdminHandler struct {
	admin *usecase.AccountAdminService
	log   *zap.Logger
}

// NewAdminHandler wires the admin endpoints.
func NewAdminHandler(admin *usecase.AccountAdminService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, log: log}
}

// Suspend places an account under suspension and revokes its sessions.
func (h *AdminHandler) Suspend(c *gin.Context) {
	var req SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	err := h.admin.Suspend(c.Request.Context(), usecase.SuspendInput{
		AccountUUID:  c.Param("id"),
		Reason:       req.Reason,
		DurationDays: req.DurationDays,
		ActorID:      c.GetString(middleware.AccountUUIDKey),
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account suspended"})
}

// Unsuspend lifts a suspension.
func (h *AdminHandler) Unsuspend(c *gin.Context) {
	err := h.admin.Unsuspend(c.Request.Context(), c.Param("id"), c.GetString(middleware.AccountUUIDKey))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account unsuspended"})
}

// Unlock clears a failed-login lockout before its window lapses.
func (h *AdminHandler) Unlock(c *gin.Context) {
	err := h.admin.Unlock(c.Request.Context(), c.Param("id"), c.GetString(middleware.AccountUUIDKey))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account unlocked"})
}

// ListSessions returns the sessions of an arbitrary account.
func (h *AdminHandler) ListSessions(c *gin.Context) {
	sessions, err := h.admin.ListSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSessionListResponse(sessions))
}
