package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jgirmay/pyguide/internal/common/errors"
	"github.com/jgirmay/pyguide/internal/common/middleware"
	"github.com/jgirmay/pyguide/internal/identity/models"
	"github.com/jgirmay/pyguide/internal/identity/services"
)

// AuthHandler serves account registration and sign-in.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes mounts the public endpoints on public and the
// token-protected ones on protected.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)

	protected.POST("/auth/logout", h.Logout)
	protected.GET("/auth/me", h.Me)
}

// Register creates an account and signs it in
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid registration", err.Error()))
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login exchanges credentials for a token
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid login", err.Error()))
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	h.auth.Logout(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		return
	}

	user, err := h.auth.Me(c.Request.Context(), userID)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
