// Package service contains the business logic layer.
package service

import (
	"context"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/metrics"
	"github.com/ai-devops/autoheal/internal/orchestrator"
	"go.uber.org/zap"
)

// Detector scores a telemetry snapshot.
type Detector interface {
	Detect(ctx context.Context, snap domain.TelemetrySnapshot) (domain.DetectionResult, error)
}

// PipelineConfig contains configuration for the Pipeline.
type PipelineConfig struct {
	// Async hands incidents to the orchestrator in the background instead
	// of waiting for classification and remediation.
	Async bool
}

// Result is the outcome of one ingested snapshot.
type Result struct {
	Detection  domain.DetectionResult `json:"detection"`
	IncidentID string                 `json:"incident_id,omitempty"`
	Incident   *domain.Incident       `json:"incident,omitempty"`
}

// Pipeline runs detection on a snapshot and hands alerts to the orchestrator.
type Pipeline struct {
	detector     Detector
	orchestrator *orchestrator.Orchestrator
	async        bool
	logger       *zap.Logger
}

// NewPipeline creates a new Pipeline with all dependencies.
func NewPipeline(
	detector Detector,
	orch *orchestrator.Orchestrator,
	config PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		detector:     detector,
		orchestrator: orch,
		async:        config.Async,
		logger:       logger.Named("pipeline"),
	}
}

// Run processes a snapshot through the pipeline:
// 1. Score it with the detector
// 2. Record the detection
// 3. Open an incident for alerts and drive it through the orchestrator
func (p *Pipeline) Run(ctx context.Context, snap domain.TelemetrySnapshot) (Result, error) {
	startTime := time.Now()

	detection, err := p.detector.Detect(ctx, snap)
	metrics.ObserveCall("detector", time.Since(startTime), err)
	if err != nil {
		p.logger.Error("detection failed",
			zap.Error(err),
			zap.String("kind", string(domain.KindOf(err))),
			zap.String("host", snap.Host),
		)
		return Result{}, err
	}

	severity := ""
	if detection.IsAlert() {
		severity = string(detection.Parameters.Severity)
	}
	metrics.ObserveDetection(string(detection.Action), severity)

	result := Result{Detection: detection}
	if !detection.IsAlert() {
		p.logger.Debug("no anomaly", zap.String("host", snap.Host))
		return result, nil
	}

	if p.async {
		id, _ := p.orchestrator.Submit(ctx, detection, snap)
		result.IncidentID = id
	} else if inc := p.orchestrator.Process(ctx, detection, snap); inc != nil {
		result.IncidentID = inc.ID
		result.Incident = inc
	}

	p.logger.Info("snapshot processed",
		zap.String("incident_id", result.IncidentID),
		zap.String("severity", severity),
		zap.Bool("async", p.async),
		zap.Duration("duration", time.Since(startTime)),
	)
	return result, nil
}

// Ingest implements telemetry.Sink.
func (p *Pipeline) Ingest(ctx context.Context, snap domain.TelemetrySnapshot) error {
	_, err := p.Run(ctx, snap)
	return err
}
