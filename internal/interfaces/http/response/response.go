package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	domainerrors "nostrdvm.backend/internal/domain/errors"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// statusFor maps the DVM's sentinel taxonomy onto an HTTP status for the
// admin surface (/healthz, /metrics, /debug/ledger). The orchestrator
// itself never produces an HTTP response; this mapping only matters here.
func statusFor(appErr *domainerrors.AppError) int {
	switch {
	case errors.Is(appErr, domainerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(appErr, domainerrors.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(appErr, domainerrors.ErrBlacklisted):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error sends an error response
func Error(c *gin.Context, err error) {
	appErr, ok := err.(*domainerrors.AppError)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(statusFor(appErr), gin.H{"error": appErr.Error()})
}

// ErrorWithError sends an error response with a specific status and message
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}
