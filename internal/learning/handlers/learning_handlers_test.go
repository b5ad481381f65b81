package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	content "github.com/jgirmay/pyguide/internal/content/models"
	contentrepo "github.com/jgirmay/pyguide/internal/content/repository"
	contentsvc "github.com/jgirmay/pyguide/internal/content/services"
	identity "github.com/jgirmay/pyguide/internal/identity/models"
	"github.com/jgirmay/pyguide/internal/learning/models"
	"github.com/jgirmay/pyguide/internal/learning/practice"
	"github.com/jgirmay/pyguide/internal/learning/services"
	"github.com/jgirmay/pyguide/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&identity.User{}, &identity.Role{},
		&content.Section{}, &content.Subject{}, &content.Content{},
		&models.Attempt{}, &models.QuestioningSession{}, &models.SubjectProgress{},
	))

	catalog := contentsvc.NewCatalogService(contentrepo.NewContentRepository(db), nil, nil)
	_, err = catalog.CreateSection(ctx, content.CreateSectionRequest{ID: "basics", Title: "Basics"})
	require.NoError(t, err)
	_, err = catalog.CreateSubject(ctx, "basics", content.CreateSubjectRequest{ID: "vars", Title: "Variables"})
	require.NoError(t, err)
	_, err = catalog.CreateSubject(ctx, "basics", content.CreateSubjectRequest{ID: "loops", Title: "Loops", MinPointsRequired: 10})
	require.NoError(t, err)
	_, err = catalog.CreateItem(ctx, "basics", "vars", &content.TrueFalse{ID: "q1", Statement: "x = 1 binds x", Answer: true, MaxPoints: 10})
	require.NoError(t, err)
	_, err = catalog.CreateSubject(ctx, "basics", content.CreateSubjectRequest{ID: "lists", Title: "Lists"})
	require.NoError(t, err)
	for _, q := range []struct {
		id      string
		correct int
	}{{"q2", 1}, {"q3", 0}, {"q4", 1}} {
		_, err = catalog.CreateItem(ctx, "basics", "lists", &content.MultipleChoice{ID: q.id, Question: "Pick one", Options: []string{"a", "b"}, CorrectIndex: q.correct, MaxPoints: 10})
		require.NoError(t, err)
	}
	require.NoError(t, catalog.PublishSection(ctx, "basics", true))
	require.NoError(t, catalog.PublishSubject(ctx, "basics", "lists", true))
	require.NoError(t, catalog.PublishSubject(ctx, "basics", "vars", true))
	require.NoError(t, catalog.PublishSubject(ctx, "basics", "loops", true))

	store := services.NewStore(db)
	require.NoError(t, store.Users.Create(ctx, &identity.User{ID: "ann", Email: "ann@example.com", PasswordHash: "x", DisplayName: "Ann"}))

	policy := config.DefaultLearningPolicy()
	policy.PropagationDelay = 0
	lessons := services.NewLessonService(store, catalog, nil, nil, policy, nil)
	t.Cleanup(lessons.Close)
	practiceSvc := services.NewPracticeService(store, catalog, practice.NewSelector(policy.PracticeSize, nil), nil, nil)
	h := NewLearningHandler(lessons, practiceSvc, services.NewLeaderboardService(store, nil, policy, nil), services.NewStatsService(store, catalog, practiceSvc))

	router := gin.New()
	withUser := func(c *gin.Context) {
		if user := c.GetHeader("X-User"); user != "" {
			c.Set("user_id", user)
		}
		c.Next()
	}
	h.RegisterRoutes(router.Group("/api/v1", withUser))
	return router
}

func do(router *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func code(t *testing.T, w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestLessonEndpoints(t *testing.T) {
	router := setupRouter(t)

	w := do(router, http.MethodPost, "/api/v1/sections/basics/subjects/loops/sessions", "ann", "")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SUBJECT_LOCKED", code(t, w))

	w = do(router, http.MethodPost, "/api/v1/practice", "ann", `{"mode":"random"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_PRACTICE_MATERIAL", code(t, w))

	w = do(router, http.MethodPost, "/api/v1/sections/basics/subjects/vars/sessions", "ann", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var start struct {
		Session models.QuestioningSession `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))
	id := start.Session.ID

	w = do(router, http.MethodPost, "/api/v1/sessions/"+id+"/attempts", "ann", `{"question_id":"q1","answer":true,"time_taken_ms":900}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/api/v1/sessions/"+id+"/attempts", "ann", `{"question_id":"q1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/v1/sessions/"+id+"/complete", "ann", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var done models.CompletionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &done))
	require.NotNil(t, done.Result)
	assert.Equal(t, 10, done.Result.GainedPoints)
	assert.False(t, done.LeaderboardReadyAt.IsZero())

	w = do(router, http.MethodPost, "/api/v1/sessions/"+id+"/complete", "ann", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodGet, "/api/v1/sections/basics/subjects/loops/availability", "ann", "")
	require.Equal(t, http.StatusOK, w.Code)
	var avail models.AvailabilityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &avail))
	assert.True(t, avail.Available)

	w = do(router, http.MethodGet, "/api/v1/me/points", "ann", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"ann","total_points":10}`, w.Body.String())

	w = do(router, http.MethodGet, "/api/v1/sessions/"+id, "ben", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMultipleChoiceLesson(t *testing.T) {
	router := setupRouter(t)

	w := do(router, http.MethodPost, "/api/v1/sections/basics/subjects/lists/sessions", "ann", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var start struct {
		Session models.QuestioningSession `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))
	attempts := "/api/v1/sessions/" + start.Session.ID + "/attempts"

	answers := []struct {
		body    string
		want    int
		correct bool
	}{
		{`{"question_id":"q2","answer":1}`, http.StatusCreated, true},
		{`{"question_id":"q3","answer":1}`, http.StatusCreated, false},
		{`{"question_id":"q4","answer":1}`, http.StatusCreated, true},
		{`{"question_id":"q4","answer":0}`, http.StatusConflict, false},
		{`{"question_id":"q2","answer":0,"is_retry":true}`, http.StatusUnprocessableEntity, false},
	}
	for _, a := range answers {
		w = do(router, http.MethodPost, attempts, "ann", a.body)
		require.Equal(t, a.want, w.Code, a.body+" "+w.Body.String())
		if a.want != http.StatusCreated {
			continue
		}
		var resp models.SubmitAnswerResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, a.correct, resp.IsCorrect, a.body)
	}

	w = do(router, http.MethodGet, "/api/v1/sessions/"+start.Session.ID+"/incorrect", "ann", "")
	require.Equal(t, http.StatusOK, w.Code)
	var missed struct {
		Items []content.ItemView `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &missed))
	require.Len(t, missed.Items, 1)
	assert.Equal(t, "q3", missed.Items[0].ID)

	w = do(router, http.MethodPost, attempts, "ann", `{"question_id":"q3","answer":0,"is_retry":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/api/v1/sessions/"+start.Session.ID+"/complete", "ann", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var done models.CompletionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &done))
	require.NotNil(t, done.Result)
	assert.Equal(t, 2, done.Result.FirstTryCorrect)
	assert.Equal(t, 1, done.Result.RetryCorrect)
	assert.Equal(t, 25, done.Result.GainedPoints)
	assert.True(t, done.Result.Passed)

	w = do(router, http.MethodGet, "/api/v1/me/question-stats", "ann", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Questions map[string]practice.Stat `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, practice.Stat{Total: 2, Correct: 1, Incorrect: 1}, stats.Questions["q3"])
	assert.Equal(t, practice.Stat{Total: 1, Correct: 1}, stats.Questions["q2"])
}

func TestLeaderboardAndStatsEndpoints(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		name string
		path string
		user string
		want int
	}{
		{"global", "/api/v1/leaderboard", "ann", http.StatusOK},
		{"subject", "/api/v1/leaderboard?sectionId=basics&subjectId=vars", "ann", http.StatusOK},
		{"question without subject", "/api/v1/leaderboard?questionId=q1", "ann", http.StatusBadRequest},
		{"stats", "/api/v1/me/stats", "ann", http.StatusOK},
		{"question stats", "/api/v1/me/question-stats", "ann", http.StatusOK},
		{"anonymous", "/api/v1/me/stats", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodGet, tt.path, tt.user, "")
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w := do(router, http.MethodGet, "/api/v1/leaderboard", "ann", "")
	var board models.LeaderboardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board.Entries, 1)
	assert.True(t, board.Entries[0].IsSelf)
	assert.Equal(t, 1, board.Entries[0].Rank)
}
