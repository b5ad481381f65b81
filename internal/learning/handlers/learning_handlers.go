package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jgirmay/pyguide/internal/common/errors"
	"github.com/jgirmay/pyguide/internal/common/middleware"
	"github.com/jgirmay/pyguide/internal/learning/models"
	"github.com/jgirmay/pyguide/internal/learning/services"
)

// LearningHandler serves lessons, practice, the leaderboard and user statistics.
type LearningHandler struct {
	lessons     *services.LessonService
	practice    *services.PracticeService
	leaderboard *services.LeaderboardService
	stats       *services.StatsService
}

func NewLearningHandler(lessons *services.LessonService, practice *services.PracticeService, leaderboard *services.LeaderboardService, stats *services.StatsService) *LearningHandler {
	return &LearningHandler{
		lessons:     lessons,
		practice:    practice,
		leaderboard: leaderboard,
		stats:       stats,
	}
}

// RegisterRoutes mounts on a group that already requires authentication.
func (h *LearningHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/sections/:sectionId/subjects/:subjectId/availability", h.Availability)
	api.POST("/sections/:sectionId/subjects/:subjectId/sessions", h.StartLesson)

	sessions := api.Group("/sessions")
	{
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/questions/:questionId/start", h.ArmQuestion)
		sessions.POST("/:id/attempts", h.SubmitAnswer)
		sessions.GET("/:id/incorrect", h.IncorrectQuestions)
		sessions.POST("/:id/complete", h.Complete)
	}

	api.POST("/practice", h.StartPractice)
	api.GET("/leaderboard", h.Leaderboard)

	me := api.Group("/me")
	{
		me.GET("/stats", h.Stats)
		me.GET("/question-stats", h.QuestionStats)
		me.GET("/points", h.Points)
	}
}

func currentUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
	}
	return userID, ok
}

// GET /sections/:sectionId/subjects/:subjectId/availability
func (h *LearningHandler) Availability(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	resp, err := h.lessons.Availability(c.Request.Context(), userID, c.Param("sectionId"), c.Param("subjectId"))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StartLesson opens a lesson session; locked subjects answer 403
// POST /sections/:sectionId/subjects/:subjectId/sessions
func (h *LearningHandler) StartLesson(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	resp, err := h.lessons.StartLesson(c.Request.Context(), userID, c.Param("sectionId"), c.Param("subjectId"))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GET /sessions/:id
func (h *LearningHandler) GetSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	session, err := h.lessons.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// POST /sessions/:id/questions/:questionId/start
func (h *LearningHandler) ArmQuestion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	resp, err := h.lessons.ArmQuestion(c.Request.Context(), userID, c.Param("id"), c.Param("questionId"))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitAnswer records one answer
// POST /sessions/:id/attempts
func (h *LearningHandler) SubmitAnswer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid answer", err.Error()))
		return
	}
	resp, err := h.lessons.SubmitAnswer(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GET /sessions/:id/incorrect
func (h *LearningHandler) IncorrectQuestions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.lessons.IncorrectQuestions(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Complete scores the session
// POST /sessions/:id/complete
func (h *LearningHandler) Complete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	resp, err := h.lessons.Complete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /practice
func (h *LearningHandler) StartPractice(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.StartPracticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid practice request", err.Error()))
		return
	}
	resp, err := h.practice.Start(c.Request.Context(), userID, req.Mode)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Leaderboard returns the window around the caller
// GET /leaderboard?sectionId=&subjectId=&questionId=
func (h *LearningHandler) Leaderboard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var q services.LeaderboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest(err.Error()))
		return
	}
	resp, err := h.leaderboard.Load(c.Request.Context(), userID, q)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /me/stats
func (h *LearningHandler) Stats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	stats, err := h.stats.Stats(c.Request.Context(), userID)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /me/question-stats
func (h *LearningHandler) QuestionStats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	stats, err := h.stats.QuestionStats(c.Request.Context(), userID)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": stats})
}

// GET /me/points
func (h *LearningHandler) Points(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	points, err := h.stats.Points(c.Request.Context(), userID)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "total_points": points})
}
