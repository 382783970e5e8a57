package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/transport/http/middleware"
	"github.com/silver1334/lianxin/internal/usecase"
)

// SessionHandler lets an account inspect its own sessions.
type SessionHandler struct {
	admin *usecase.AccountAdminService
	log   *zap.Logger
}

// NewSessionHandler wires the session listing endpoint.
func NewSessionHandler(admin *usecase.AccountAdminService, log *zap.Logger) *SessionHandler {
	return &SessionHandler{admin: admin, log: log}
}

// List returns the sessions of the authenticated account.
func (h *SessionHandler) List(c *gin.Context) {
	accountUUID := c.GetString(middleware.AccountUUIDKey)

	sessions, err := h.admin.ListSessions(c.Request.Context(), accountUUID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSessionListResponse(sessions))
}

func newSessionListResponse(sessions []domain.Session) SessionListResponse {
	out := SessionListResponse{Sessions: make([]SessionSummary, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, SessionSummary{
			SessionID:    s.PublicID,
			DeviceID:     s.DeviceID,
			DeviceName:   s.DeviceName,
			IP:           s.IP,
			Active:       s.Active,
			LastActiveAt: s.LastActiveAt,
			CreatedAt:    s.CreatedAt,
			RevokedAt:    s.RevokedAt,
			RevokeReason: s.RevokeReason,
		})
	}
	return out
}
