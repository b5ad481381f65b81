package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jgirmay/pyguide/internal/common/errors"
	"github.com/jgirmay/pyguide/internal/common/middleware"
	"github.com/jgirmay/pyguide/internal/content/models"
	"github.com/jgirmay/pyguide/internal/content/services"
)

// CatalogHandler serves catalog reads and the admin curation endpoints.
type CatalogHandler struct {
	catalog *services.CatalogService
	roles   middleware.AdminChecker
}

func NewCatalogHandler(catalog *services.CatalogService, roles middleware.AdminChecker) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, roles: roles}
}

// RegisterRoutes mounts learner reads on api and curation on admin.
// Both groups must already require authentication; admin also the admin role.
func (h *CatalogHandler) RegisterRoutes(api, admin *gin.RouterGroup) {
	api.GET("/sections", h.ListSections)
	api.GET("/sections/:sectionId", h.GetSection)
	api.GET("/sections/:sectionId/subjects/:subjectId", h.GetSubject)

	admin.POST("/sections", h.CreateSection)
	admin.PUT("/sections/order", h.ReorderSections)
	admin.PUT("/sections/:sectionId", h.UpdateSection)
	admin.DELETE("/sections/:sectionId", h.DeleteSection)
	admin.POST("/sections/:sectionId/publish", h.publishSection(true))
	admin.POST("/sections/:sectionId/unpublish", h.publishSection(false))

	admin.POST("/sections/:sectionId/subjects", h.CreateSubject)
	admin.PUT("/sections/:sectionId/subjects/order", h.ReorderSubjects)
	admin.PUT("/sections/:sectionId/subjects/:subjectId", h.UpdateSubject)
	admin.DELETE("/sections/:sectionId/subjects/:subjectId", h.DeleteSubject)
	admin.POST("/sections/:sectionId/subjects/:subjectId/publish", h.publishSubject(true))
	admin.POST("/sections/:sectionId/subjects/:subjectId/unpublish", h.publishSubject(false))

	admin.POST("/sections/:sectionId/subjects/:subjectId/items", h.CreateItem)
	admin.PUT("/sections/:sectionId/subjects/:subjectId/items/order", h.ReorderItems)
	admin.PUT("/sections/:sectionId/subjects/:subjectId/items/:itemId", h.UpdateItem)
	admin.DELETE("/sections/:sectionId/subjects/:subjectId/items/:itemId", h.DeleteItem)
}

// ListSections lists the catalog
// GET /sections
func (h *CatalogHandler) ListSections(c *gin.Context) {
	sections, err := h.catalog.ListSections(c.Request.Context(), h.isAdmin(c))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sections": sections})
}

// GET /sections/:sectionId
func (h *CatalogHandler) GetSection(c *gin.Context) {
	section, err := h.catalog.GetSection(c.Request.Context(), c.Param("sectionId"), h.isAdmin(c))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, section)
}

// GET /sections/:sectionId/subjects/:subjectId
func (h *CatalogHandler) GetSubject(c *gin.Context) {
	subject, err := h.catalog.GetSubject(c.Request.Context(), c.Param("sectionId"), c.Param("subjectId"), h.isAdmin(c))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (h *CatalogHandler) CreateSection(c *gin.Context) {
	var req models.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid section", err.Error()))
		return
	}
	section, err := h.catalog.CreateSection(c.Request.Context(), req)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, section)
}

func (h *CatalogHandler) UpdateSection(c *gin.Context) {
	var req models.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid section", err.Error()))
		return
	}
	section, err := h.catalog.UpdateSection(c.Request.Context(), c.Param("sectionId"), req)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, section)
}

func (h *CatalogHandler) DeleteSection(c *gin.Context) {
	if err := h.catalog.DeleteSection(c.Request.Context(), c.Param("sectionId")); err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) publishSection(publish bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.catalog.PublishSection(c.Request.Context(), c.Param("sectionId"), publish); err != nil {
			middleware.JSONErrorResponse(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *CatalogHandler) ReorderSections(c *gin.Context) {
	ids, ok := bindReorder(c)
	if !ok {
		return
	}
	if err := h.catalog.ReorderSections(c.Request.Context(), ids); err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) CreateSubject(c *gin.Context) {
	var req models.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid subject", err.Error()))
		return
	}
	subject, err := h.catalog.CreateSubject(c.Request.Context(), c.Param("sectionId"), req)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, subject)
}

func (h *CatalogHandler) UpdateSubject(c *gin.Context) {
	var req models.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid subject", err.Error()))
		return
	}
	subject, err := h.catalog.UpdateSubject(c.Request.Context(), c.Param("sectionId"), c.Param("subjectId"), req)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (h *CatalogHandler) DeleteSubject(c *gin.Context) {
	if err := h.catalog.DeleteSubject(c.Request.Context(), c.Param("sectionId"), c.Param("subjectId")); err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) publishSubject(publish bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.catalog.PublishSubject(c.Request.Context(), c.Param("sectionId"), c.Param("subjectId"), publish)
		if err != nil {
			middleware.JSONErrorResponse(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *CatalogHandler) ReorderSubjects(c *gin.Context) {
	ids, ok := bindReorder(c)
	if !ok {
		return
	}
	if err := h.catalog.ReorderSubjects(c.Request.Context(), c.Param("sectionId"), ids); err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateItem accepts any variant keyed by "type".
// POST /admin/sections/:sectionId/subjects/:subjectId/items
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	item, ok := bindItem(c)
	if !ok {
		return
	}
	view, err := h.catalog.CreateItem(c.Request.Context(), c.Param("sectionId"), c.Param("subjectId"), item)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	item, ok := bindItem(c)
	if !ok {
		return
	}
	view, err := h.catalog.UpdateItem(c.Request.Context(), c.Param("sectionId"), c.Param("subjectId"), c.Param("itemId"), item)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CatalogHandler) DeleteItem(c *gin.Context) {
	if err := h.catalog.DeleteItem(c.Request.Context(), c.Param("subjectId"), c.Param("itemId")); err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) ReorderItems(c *gin.Context) {
	ids, ok := bindReorder(c)
	if !ok {
		return
	}
	if err := h.catalog.ReorderItems(c.Request.Context(), c.Param("subjectId"), ids); err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) isAdmin(c *gin.Context) bool {
	userID, ok := middleware.UserID(c)
	if !ok || h.roles == nil {
		return false
	}
	admin, err := h.roles.IsAdmin(c.Request.Context(), userID)
	return err == nil && admin
}

func bindReorder(c *gin.Context) ([]string, bool) {
	var req models.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid order", err.Error()))
		return nil, false
	}
	return req.IDs, true
}

func bindItem(c *gin.Context) (models.Item, bool) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("unreadable body"))
		return nil, false
	}
	item, err := models.DecodeItem(raw)
	if err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid item", err.Error()))
		return nil, false
	}
	return item, true
}
