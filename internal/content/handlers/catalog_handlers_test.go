package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jgirmay/pyguide/internal/content/models"
	"github.com/jgirmay/pyguide/internal/content/repository"
	"github.com/jgirmay/pyguide/internal/content/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubRoles map[string]bool

func (s stubRoles) IsAdmin(_ context.Context, userID string) (bool, error) {
	return s[userID], nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Section{}, &models.Subject{}, &models.Content{}))
	return db
}

// setupRouter trusts the X-User header so tests can act as different users.
func setupRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := services.NewCatalogService(repository.NewContentRepository(setupTestDB(t)), nil, nil)
	h := NewCatalogHandler(svc, stubRoles{"admin": true})

	router := gin.New()
	withUser := func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-User"))
		c.Next()
	}
	api := router.Group("/api/v1", withUser)
	h.RegisterRoutes(api, api.Group("/admin"))
	return router
}

func do(router *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCatalogFlow(t *testing.T) {
	router := setupRouter(t)

	w := do(router, http.MethodPost, "/api/v1/admin/sections", "admin", `{"id":"basics","title":"Basics"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/api/v1/admin/sections/basics/subjects", "admin", `{"id":"vars","title":"Variables","min_points_required":20}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/api/v1/admin/sections/basics/subjects/vars/items", "admin",
		`{"type":"mcq","question":"Which is mutable?","options":["tuple","list"],"correct_index":1,"max_points":10,"time_limit_seconds":30}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/api/v1/admin/sections/basics/subjects/vars/items", "admin", `{"type":"essay"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// drafts are hidden from learners
	w = do(router, http.MethodGet, "/api/v1/sections/basics", "learner", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusNoContent, do(router, http.MethodPost, "/api/v1/admin/sections/basics/publish", "admin", "").Code)
	require.Equal(t, http.StatusNoContent, do(router, http.MethodPost, "/api/v1/admin/sections/basics/subjects/vars/publish", "admin", "").Code)

	w = do(router, http.MethodGet, "/api/v1/sections/basics/subjects/vars", "learner", "")
	require.Equal(t, http.StatusOK, w.Code)
	var subject models.SubjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subject))
	require.Len(t, subject.Items, 1)
	assert.Equal(t, 20, subject.MinPointsRequired)
	assert.Nil(t, subject.Items[0].CorrectIndex, "answer key must not reach learners")

	w = do(router, http.MethodGet, "/api/v1/sections/basics/subjects/vars", "admin", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subject))
	require.NotNil(t, subject.Items[0].CorrectIndex)
	assert.Equal(t, 1, *subject.Items[0].CorrectIndex)
}

func TestReorderValidation(t *testing.T) {
	router := setupRouter(t)

	w := do(router, http.MethodPut, "/api/v1/admin/sections/order", "admin", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPut, "/api/v1/admin/sections/order", "admin", `{"ids":["ghost"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
