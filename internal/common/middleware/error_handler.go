package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/jgirmay/pyguide/internal/common/errors"
	"github.com/jgirmay/pyguide/pkg/logger"
	"go.uber.org/zap"
)

// ErrorHandler middleware catches panics and converts them to proper error responses
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
				)
				appErr := errors.Internal("internal server error", "")
				c.AbortWithStatusJSON(appErr.Status, appErr)
			}
		}()
		c.Next()
	}
}

// JSONErrorResponse wraps errors in consistent JSON format
func JSONErrorResponse(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		logger.Error("unhandled error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		appErr = errors.Internal("internal server error", "")
	}

	c.JSON(appErr.Status, appErr)
}
