package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "finwatch/internal/errors"
	"finwatch/internal/logger"
)

// ErrorHandler renders the last error attached with c.Error. AppErrors keep
// their code and status; anything else becomes INTERNAL_ERROR. Causes are
// logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		log := logger.Named("http")
		err := c.Errors.Last().Err

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			log.Errorw("unexpected error",
				"error", err,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			writeError(c, apperrors.ErrInternalServer)
			return
		}

		if appErr.Internal != nil {
			log.Errorw("request failed",
				"code", appErr.Code,
				"internal", appErr.Internal,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
		}
		writeError(c, appErr)
	}
}

// writeError is the single JSON error shape for middleware responses.
func writeError(c *gin.Context, err *apperrors.AppError) {
	c.JSON(err.StatusCode, gin.H{
		"error": gin.H{
			"code":    err.Code,
			"message": err.Message,
		},
	})
}
