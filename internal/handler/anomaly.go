package handler

import (
	"context"
	"net/http"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ingestor runs a snapshot through detection and incident handling.
type Ingestor interface {
	Run(ctx context.Context, snap domain.TelemetrySnapshot) (service.Result, error)
}

// AnomalyHandler handles telemetry ingress.
type AnomalyHandler struct {
	pipeline Ingestor
	logger   *zap.Logger
}

// NewAnomalyHandler creates a new AnomalyHandler.
func NewAnomalyHandler(pipeline Ingestor, logger *zap.Logger) *AnomalyHandler {
	return &AnomalyHandler{
		pipeline: pipeline,
		logger:   logger.Named("anomaly_handler"),
	}
}

// Handle processes POST /anomaly requests.
func (h *AnomalyHandler) Handle(c *gin.Context) {
	logger := h.logger.With(zap.String("request_id", c.GetString(requestIDKey)))

	var snap domain.TelemetrySnapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		logger.Warn("invalid request body", zap.Error(err))
		errorJSON(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.pipeline.Run(c.Request.Context(), snap)
	if err != nil {
		errorJSON(c, statusFor(err), err.Error())
		return
	}

	resp := gin.H{
		"status": "processed",
		"action": result.Detection.Action,
	}
	if result.IncidentID != "" {
		resp["incident_id"] = result.IncidentID
	}
	if result.Incident != nil {
		resp["state"] = result.Incident.State
	}
	c.JSON(http.StatusOK, resp)
}

func errorJSON(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{
		"status": "error",
		"error":  msg,
	})
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindTransport:
		return http.StatusBadGateway
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
