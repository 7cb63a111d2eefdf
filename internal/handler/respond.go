package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecttracker/internal/apperrors"
	"projecttracker/pkg/logger"
)

// respondError maps service errors onto HTTP statuses. Causes of 5xx
// responses are logged and never echoed to the client.
func respondError(c *gin.Context, log *zap.Logger, err error, msg string) {
	switch {
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.WithTrace(c.Request.Context(), log).Error(msg,
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
}
