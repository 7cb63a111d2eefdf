package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecttracker/internal/model"
	"projecttracker/internal/otdr"
	"projecttracker/pkg/logger"
)

type OTDRHandler struct {
	service *otdr.Service
	logger  *zap.Logger
}

func NewOTDRHandler(service *otdr.Service, logger *zap.Logger) *OTDRHandler {
	return &OTDRHandler{service: service, logger: logger}
}

// UpdateOTDR folds one stage toggle into the stage's record.
// POST /update-otdr
func (h *OTDRHandler) UpdateOTDR(c *gin.Context) {
	var ev otdr.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		badRequest(c, err)
		return
	}

	rec, err := h.service.RecordStageEvent(c.Request.Context(), ev)
	if err != nil {
		respondError(c, h.logger, err, "failed to update otdr")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "record": rec})
}

// ResetOTDR clears every stage record.
// POST /reset-otdr
func (h *OTDRHandler) ResetOTDR(c *gin.Context) {
	if err := h.service.ResetAll(c.Request.Context()); err != nil {
		respondError(c, h.logger, err, "failed to reset otdr")
		return
	}
	logger.WithTrace(c.Request.Context(), h.logger).Info("OTDR reset by operator",
		zap.String("subject", c.GetString(ContextSubject)),
	)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/otdr-stats
func (h *OTDRHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to load otdr stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /api/otdr/:stage
func (h *OTDRHandler) Record(c *gin.Context) {
	rec, err := h.service.Record(c.Request.Context(), model.StageID(c.Param("stage")))
	if err != nil {
		respondError(c, h.logger, err, "failed to load otdr record")
		return
	}
	c.JSON(http.StatusOK, rec)
}
