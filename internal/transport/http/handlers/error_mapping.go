package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/silver1334/lianxin/internal/core/domain"
)

// accountSuspendedCode gets a dedicated status: the caller authenticated
// correctly but is forbidden from proceeding.
const accountSuspendedCode = "account_suspended"

// RespondWithError maps domain failures to HTTP statuses. All mapping lives
// here so handlers stay declarative.
func RespondWithError(c *gin.Context, err error) {
	var domErr *domain.Error
	if errors.As(err, &domErr) {
		status := statusForKind(domErr.Kind)
		if domErr.Code == accountSuspendedCode {
			status = http.StatusForbidden
		}
		c.JSON(status, NewErrorResponse(c, domErr.Code, domErr.Message))
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "internal_error", "internal server error"))
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindState:
		return http.StatusConflict
	case domain.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondBadRequest reports a malformed request body.
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid_request", err.Error()))
}
