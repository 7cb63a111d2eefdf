package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecttracker/internal/mail"
	"projecttracker/pkg/logger"
)

type MailHandler struct {
	sender mail.Sender
	logger *zap.Logger
}

func NewMailHandler(sender mail.Sender, logger *zap.Logger) *MailHandler {
	return &MailHandler{sender: sender, logger: logger}
}

// SendEmail relays a message synchronously.
// POST /send-email
func (h *MailHandler) SendEmail(c *gin.Context) {
	var msg mail.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := h.sender.Send(c.Request.Context(), msg)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mail.ErrInvalidMessage) {
			status = http.StatusBadRequest
		}
		logger.WithTrace(c.Request.Context(), h.logger).Warn("Mail relay failed",
			zap.Strings("to", msg.To),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messageId": res.MessageID})
}
