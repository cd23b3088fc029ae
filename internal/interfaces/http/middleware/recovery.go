package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
	"github.com/aibtcdev/x402-api/pkg/logger"
)

// RecoveryMiddleware converts handler panics into a 500 carrying the request
// id, keeping the process alive and the stack in the logs.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "handler panicked",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				requestID := c.GetString(RequestIDKey)
				appErr := domainerrors.NewAppError(http.StatusInternalServerError,
					domainerrors.CodeInternalError, "internal server error", nil)
				if requestID != "" {
					appErr.Message = "internal server error (request " + requestID + ")"
				}
				response.AbortError(c, appErr)
			}
		}()
		c.Next()
	}
}
