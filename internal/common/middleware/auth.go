package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jgirmay/pyguide/internal/common/errors"
)

// TokenParser resolves a bearer token to the id of the authenticated user.
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// AdminChecker reads the admin role live; the role is never trusted from the token.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// AuthRequired middleware checks for a valid JWT in the Authorization header
// or, for websocket upgrades, the token query parameter.
func AuthRequired(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abort(c, errors.Unauthorized("missing or invalid authentication"))
			return
		}

		userID, err := parser.ParseToken(token)
		if err != nil {
			abort(c, errors.Unauthorized("invalid or expired token"))
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// OptionalAuth sets user_id when a valid token is present and never fails.
func OptionalAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if userID, err := parser.ParseToken(token); err == nil {
				c.Set("user_id", userID)
			}
		}
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			abort(c, errors.Unauthorized("missing or invalid authentication"))
			return
		}

		ok, err := checker.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			abort(c, errors.Internal("failed to resolve role", err.Error()))
			return
		}
		if !ok {
			abort(c, errors.Forbidden("administrator role required"))
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id set by AuthRequired.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}

func abort(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.Status, appErr)
}
