package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Publisher forwards events to observers.
type Publisher interface {
	Publish(eventType string, data any)
}

type eventRequest struct {
	Type string `json:"type" binding:"required"`
	Data any    `json:"data"`
}

// EventHandler accepts events from other services for broadcast.
type EventHandler struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(publisher Publisher, logger *zap.Logger) *EventHandler {
	return &EventHandler{publisher: publisher, logger: logger.Named("event_handler")}
}

// Handle processes POST /internal/event requests.
func (h *EventHandler) Handle(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	h.publisher.Publish(req.Type, req.Data)
	h.logger.Debug("event forwarded", zap.String("type", req.Type))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
