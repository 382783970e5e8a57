package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/silver1334/lianxin/internal/core/port"
	"github.com/silver1334/lianxin/internal/infra/security"
)

// Context keys populated by RequireAuth.
const (
	AccountUUIDKey = "account_uuid"
	SessionIDKey   = "session_id"
	DeviceIDKey    = "device_id"
	RolesKey       = "roles"
)

type authErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RequireAuth validates the bearer access token and rejects tokens whose
// session has been revoked since issuance.
func RequireAuth(issuer *security.TokenIssuer, revocations port.SessionRevocationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				authErrorResponse{Error: "missing authorization header", Code: "unauthorized"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				authErrorResponse{Error: "invalid authorization format: expected 'Bearer <token>'", Code: "unauthorized"})
			return
		}

		claims, err := issuer.ParseAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			code := "invalid_token"
			if errors.Is(err, security.ErrTokenExpired) {
				code = "token_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				authErrorResponse{Error: "invalid access token", Code: code})
			return
		}

		if revocations != nil {
			revoked, _, err := revocations.IsSessionRevoked(c.Request.Context(), claims.SessionID)
			if err == nil && revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					authErrorResponse{Error: "session revoked", Code: "session_revoked"})
				return
			}
		}

		c.Set(AccountUUIDKey, claims.AccountUUID)
		c.Set(SessionIDKey, claims.SessionID)
		c.Set(DeviceIDKey, claims.DeviceID)
		c.Set(RolesKey, claims.Roles)

		c.Next()
	}
}

// RequireRole guards admin endpoints. It assumes RequireAuth already ran.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, _ := c.Get(RolesKey)
		for _, r := range toStrings(roles) {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden,
			authErrorResponse{Error: "insufficient privileges", Code: "forbidden"})
	}
}

func toStrings(value any) []string {
	out, _ := value.([]string)
	return out
}
