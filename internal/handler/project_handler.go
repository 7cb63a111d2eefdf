package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecttracker/internal/model"
	"projecttracker/internal/project"
)

type ProjectHandler struct {
	service *project.Service
	logger  *zap.Logger
}

func NewProjectHandler(service *project.Service, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{service: service, logger: logger}
}

func filterFromQuery(c *gin.Context) project.Filter {
	overdue, _ := strconv.ParseBool(c.Query("overdue"))
	return project.Filter{
		Status:       c.Query("status"),
		Stage:        c.Query("stage"),
		ProjectType:  c.Query("projectType"),
		BusinessUnit: c.Query("bu"),
		Search:       c.Query("search"),
		OverdueOnly:  overdue,
	}
}

// GET /api/projects?status=&stage=&projectType=&bu=&search=&overdue=
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.service.List(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to list projects")
		return
	}
	c.JSON(http.StatusOK, projects)
}

// GET /api/projects/summary
func (h *ProjectHandler) Summary(c *gin.Context) {
	sum, err := h.service.Summary(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to summarise projects")
		return
	}
	c.JSON(http.StatusOK, sum)
}

// GET /api/projects/overdue
func (h *ProjectHandler) Overdue(c *gin.Context) {
	projects, err := h.service.Overdue(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to list overdue projects")
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Export renders the filtered list as a CSV attachment. The body is built in
// memory so a failure can still produce a clean error response.
// GET /api/projects/export
func (h *ProjectHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.service.Export(c.Request.Context(), &buf, filterFromQuery(c)); err != nil {
		respondError(c, h.logger, err, "failed to export projects")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="projects.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "failed to load project")
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /api/projects/:id/timeline
func (h *ProjectHandler) Timeline(c *gin.Context) {
	steps, err := h.service.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "failed to build timeline")
		return
	}
	c.JSON(http.StatusOK, steps)
}

// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var d project.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.Create(c.Request.Context(), d)
	if err != nil {
		respondError(c, h.logger, err, "failed to create project")
		return
	}
	c.JSON(http.StatusCreated, p)
}

// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var d project.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.Update(c.Request.Context(), c.Param("id"), d)
	if err != nil {
		respondError(c, h.logger, err, "failed to update project")
		return
	}
	c.JSON(http.StatusOK, p)
}

// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err, "failed to delete project")
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleStage marks one stage complete or open.
// POST /api/projects/:id/stages/:stage/toggle {"completed": true}
func (h *ProjectHandler) ToggleStage(c *gin.Context) {
	var body struct {
		Completed *bool `json:"completed"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if body.Completed == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "completed is required"})
		return
	}

	resp, err := h.service.ToggleStage(c.Request.Context(), project.ToggleStageRequest{
		ProjectID: c.Param("id"),
		Stage:     model.StageID(c.Param("stage")),
		Completed: *body.Completed,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to toggle stage")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/stages
func (h *ProjectHandler) Stages(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Engine().Registry().Stages())
}
