package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jgirmay/pyguide/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubParser map[string]string

func (s stubParser) ParseToken(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", fmt.Errorf("bad token")
}

type stubAdmins map[string]bool

func (s stubAdmins) IsAdmin(_ context.Context, userID string) (bool, error) {
	return s[userID], nil
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(), LoggerMiddleware(zap.NewNop()))

	parser := stubParser{"good": "u1", "admin": "a1"}
	admins := stubAdmins{"a1": true}

	authed := router.Group("/", AuthRequired(parser))
	authed.GET("/me", func(c *gin.Context) {
		id, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})
	authed.GET("/admin", AdminRequired(admins), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/optional", OptionalAuth(parser), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	router.GET("/panic", func(c *gin.Context) { panic("boom") })
	router.GET("/fail", func(c *gin.Context) {
		JSONErrorResponse(c, fmt.Errorf("wrapped: %w", errors.NotFound("subject")))
	})
	router.GET("/plain", func(c *gin.Context) {
		JSONErrorResponse(c, fmt.Errorf("db down"))
	})
	return router
}

func TestAuthRequired(t *testing.T) {
	router := setupRouter()

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{"missing token", "/me", "", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"bearer header", "/me", "Bearer good", http.StatusOK},
		{"query token", "/me?token=good", "", http.StatusOK},
		{"non admin", "/admin", "Bearer good", http.StatusForbidden},
		{"admin", "/admin", "Bearer admin", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	router := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":""}`, w.Body.String())
}

func TestErrorResponses(t *testing.T) {
	router := setupRouter()

	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{"/panic", http.StatusInternalServerError, errors.CodeInternalError},
		{"/fail", http.StatusNotFound, errors.CodeNotFound},
		{"/plain", http.StatusInternalServerError, errors.CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body errors.AppError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS([]string{"*"}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
