package api

import (
	"net/http"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
)

type TemplateHandler struct {
	templateService service.TemplateService
}

func NewTemplateHandler(templateService service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

type TemplateRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Activities  []domain.Activity `json:"activities"`
}

func (r TemplateRequest) input() service.TemplateInput {
	return service.TemplateInput{Name: r.Name, Description: r.Description, Activities: r.Activities}
}

// GET /api/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}

	templates, err := h.templateService.List(c.Request.Context(), therapistID)
	if err != nil {
		respondError(c, err)
		return
	}
	if templates == nil {
		templates = []domain.Template{}
	}
	c.JSON(http.StatusOK, templates)
}

// POST /api/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req TemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	tmpl, err := h.templateService.Create(c.Request.Context(), therapistID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

// GET /api/templates/:templateId
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	templateID, ok := pathID(c, "templateId")
	if !ok {
		return
	}

	tmpl, err := h.templateService.Get(c.Request.Context(), therapistID, templateID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// PUT /api/templates/:templateId
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	templateID, ok := pathID(c, "templateId")
	if !ok {
		return
	}
	var req TemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	tmpl, err := h.templateService.Update(c.Request.Context(), therapistID, templateID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// DELETE /api/templates/:templateId
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	templateID, ok := pathID(c, "templateId")
	if !ok {
		return
	}

	if err := h.templateService.Delete(c.Request.Context(), therapistID, templateID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
