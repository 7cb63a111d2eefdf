package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"projecttracker/internal/handler"
	"projecttracker/pkg/rbac"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Handlers struct {
	Auth    *handler.AuthHandler
	Mail    *handler.MailHandler
	OTDR    *handler.OTDRHandler
	Project *handler.ProjectHandler
}

type Router struct {
	Engine *gin.Engine
}

// NewHealthRouter serves only the probe and metrics endpoints.
func NewHealthRouter(log *zap.Logger, checks map[string]ReadinessCheck) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), RequestLogger(log))

	// Health endpoints
	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	}
	for _, path := range []string{"/health", "/healthz"} {
		r.GET(path, health)
		r.HEAD(path, func(c *gin.Context) { c.Status(http.StatusOK) })
	}

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for name, check := range checks {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Router{Engine: r}
}

func NewRouter(h Handlers, jwtSecret string, log *zap.Logger, checks map[string]ReadinessCheck) *Router {
	router := NewHealthRouter(log, checks)
	r := router.Engine

	// Public
	r.POST("/send-email", h.Mail.SendEmail)
	r.POST("/update-otdr", h.OTDR.UpdateOTDR)

	api := r.Group("/api")
	{
		api.POST("/admin/login", h.Auth.Login)
		api.GET("/stages", h.Project.Stages)
		api.GET("/otdr-stats", h.OTDR.Stats)
		api.GET("/otdr/:stage", h.OTDR.Record)

		api.GET("/projects", h.Project.List)
		api.GET("/projects/summary", h.Project.Summary)
		api.GET("/projects/overdue", h.Project.Overdue)
		api.GET("/projects/export", h.Project.Export)
		api.GET("/projects/:id", h.Project.Get)
		api.GET("/projects/:id/timeline", h.Project.Timeline)
		api.POST("/projects/:id/stages/:stage/toggle", h.Project.ToggleStage)
	}

	// Protected
	admin := r.Group("/")
	admin.Use(AuthMiddleware(jwtSecret))
	{
		admin.POST("/reset-otdr", RequirePermission(rbac.PermissionOTDRReset), h.OTDR.ResetOTDR)
		admin.POST("/api/projects", RequirePermission(rbac.PermissionProjectWrite), h.Project.Create)
		admin.PUT("/api/projects/:id", RequirePermission(rbac.PermissionProjectWrite), h.Project.Update)
		admin.DELETE("/api/projects/:id", RequirePermission(rbac.PermissionProjectDelete), h.Project.Delete)
	}

	return router
}
