package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecttracker/internal/handler"
	"projecttracker/internal/util"
	"projecttracker/pkg/logger"
	"projecttracker/pkg/metrics"
	"projecttracker/pkg/rbac"
	"projecttracker/pkg/trace"
)

// TraceMiddleware adopts the caller's X-Trace-ID or mints one, and echoes it.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(trace.Header)
		if id == "" {
			id = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), id))
		c.Header(trace.Header, id)
		c.Next()
	}
}

// RequestLogger logs one line per request and feeds the latency histogram.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(status), elapsed)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
			zap.String("client_ip", c.ClientIP()),
		}
		l := logger.WithTrace(c.Request.Context(), log)
		if status >= http.StatusInternalServerError {
			l.Error("HTTP request", fields...)
			return
		}
		l.Info("HTTP request", fields...)
	}
}

func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(handler.ContextSubject, claims.Subject)
		c.Set(handler.ContextRole, claims.Role)

		c.Next()
	}
}

// RequirePermission must run after AuthMiddleware.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetString(handler.ContextSubject)
		if subject == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			c.Abort()
			return
		}

		if err := rbac.CheckPermission(subject, c.GetString(handler.ContextRole), permission); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Next()
	}
}
