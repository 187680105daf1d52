package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "finwatch/internal/errors"
)

// PipelineAuthMiddleware guards the operator routes (batch process-due, manual
// sweeps) with the X-API-Key header. An empty apiKey disables them.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
