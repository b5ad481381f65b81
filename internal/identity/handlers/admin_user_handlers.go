package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jgirmay/pyguide/internal/common/middleware"
	"github.com/jgirmay/pyguide/internal/identity/services"
)

// AdminUserHandler lists users and changes their role.
type AdminUserHandler struct {
	roles *services.RoleService
}

func NewAdminUserHandler(roles *services.RoleService) *AdminUserHandler {
	return &AdminUserHandler{roles: roles}
}

// RegisterRoutes mounts on a group that already requires the admin role.
func (h *AdminUserHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/users", h.ListUsers)
	admin.GET("/users/:id/audit", h.AuditTrail)
	admin.POST("/users/:id/promote", h.setRole(true))
	admin.POST("/users/:id/demote", h.setRole(false))
}

// GET /admin/users
func (h *AdminUserHandler) ListUsers(c *gin.Context) {
	users, err := h.roles.ListUsers(c.Request.Context())
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GET /admin/users/:id/audit?page=&page_size=
func (h *AdminUserHandler) AuditTrail(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.roles.AuditTrail(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AdminUserHandler) setRole(admin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, _ := middleware.UserID(c)
		targetID := c.Param("id")

		var err error
		if admin {
			err = h.roles.Promote(c.Request.Context(), actorID, targetID)
		} else {
			err = h.roles.Demote(c.Request.Context(), actorID, targetID)
		}
		if err != nil {
			middleware.JSONErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": targetID, "is_admin": admin})
	}
}
