package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Detector scores telemetry snapshots.
type Detector interface {
	Detect(ctx context.Context, snap domain.TelemetrySnapshot) (domain.DetectionResult, error)
}

// Classifier produces root cause verdicts.
type Classifier interface {
	Classify(ctx context.Context, req domain.ClassifierRequest) (domain.Verdict, error)
}

// Remediator runs rulebook plans.
type Remediator interface {
	Remediate(ctx context.Context, req domain.RemediationRequest) (domain.RemediationOutcome, error)
}

// DetectHandler serves the detector contract.
type DetectHandler struct {
	detector Detector
	logger   *zap.Logger
}

// NewDetectHandler creates a new DetectHandler.
func NewDetectHandler(detector Detector, logger *zap.Logger) *DetectHandler {
	return &DetectHandler{detector: detector, logger: logger.Named("detect_handler")}
}

// Handle processes POST /detect requests.
func (h *DetectHandler) Handle(c *gin.Context) {
	var snap domain.TelemetrySnapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.detector.Detect(c.Request.Context(), snap)
	if err != nil {
		h.logger.Error("detection failed", zap.Error(err))
		errorJSON(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyzeHandler serves the classifier contract.
type AnalyzeHandler struct {
	classifier Classifier
	logger     *zap.Logger
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(classifier Classifier, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{classifier: classifier, logger: logger.Named("analyze_handler")}
}

// Handle processes POST /analyze requests.
func (h *AnalyzeHandler) Handle(c *gin.Context) {
	startTime := time.Now()

	var req domain.ClassifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	logger := h.logger.With(zap.String("incident_id", req.IncidentID))

	verdict, err := h.classifier.Classify(c.Request.Context(), req)
	if err != nil {
		logger.Error("classification failed", zap.Error(err))
		errorJSON(c, statusFor(err), err.Error())
		return
	}

	logger.Info("classification completed",
		zap.String("action", string(verdict.Action)),
		zap.Duration("duration", time.Since(startTime)),
	)
	c.JSON(http.StatusOK, verdict)
}

// ExecuteHandler serves the remediation contract.
type ExecuteHandler struct {
	remediator Remediator
	logger     *zap.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(remediator Remediator, logger *zap.Logger) *ExecuteHandler {
	return &ExecuteHandler{remediator: remediator, logger: logger.Named("execute_handler")}
}

// Handle processes POST /execute requests. A plan that ran and failed is a
// 200 with status "failed"; a plan that could not be resolved is a 422.
func (h *ExecuteHandler) Handle(c *gin.Context) {
	var req domain.RemediationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	logger := h.logger.With(zap.String("incident_id", req.IncidentID))

	outcome, err := h.remediator.Remediate(c.Request.Context(), req)
	if err != nil {
		logger.Warn("remediation rejected", zap.Error(err))
		if outcome.Status == "" {
			outcome.Status = domain.RemediationFailed
			outcome.Error = err.Error()
		}
		c.JSON(statusFor(err), outcome)
		return
	}

	logger.Info("remediation finished",
		zap.String("issue_type", outcome.IssueType),
		zap.String("status", string(outcome.Status)),
	)
	c.JSON(http.StatusOK, outcome)
}
