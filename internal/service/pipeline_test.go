package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ai-devops/autoheal/internal/detector"
	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/orchestrator"
	"go.uber.org/zap"
)

type stubDetector struct {
	result domain.DetectionResult
	err    error
}

func (s stubDetector) Detect(context.Context, domain.TelemetrySnapshot) (domain.DetectionResult, error) {
	return s.result, s.err
}

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, domain.ClassifierRequest) (domain.Verdict, error) {
	return domain.Verdict{Action: domain.VerdictAlertOnly, Reason: "stub"}, nil
}

type stubRemediator struct{}

func (stubRemediator) Remediate(context.Context, domain.RemediationRequest) (domain.RemediationOutcome, error) {
	return domain.RemediationOutcome{Status: domain.RemediationSuccess}, nil
}

func newOrchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(
		orchestrator.Config{EnableAutoRemediation: true, Retention: time.Hour},
		orchestrator.Deps{Classifier: stubClassifier{}, Remediator: stubRemediator{}},
		zap.NewNop(),
	)
}

func snapshot(cpu float64) domain.TelemetrySnapshot {
	return domain.TelemetrySnapshot{
		Host: "node-1",
		Metrics: map[string]any{
			"cpu":     map[string]any{"cpu_percent": cpu},
			"memory":  map[string]any{"used_percent": 40.0},
			"disk":    map[string]any{"used_percent": 40.0},
			"network": map[string]any{"rx_bytes_per_sec": 0.0, "tx_bytes_per_sec": 0.0},
		},
	}
}

func TestPipeline_Run(t *testing.T) {
	tests := []struct {
		name         string
		cpu          float64
		wantIncident bool
		wantState    domain.IncidentState
	}{
		{name: "normal load", cpu: 30, wantIncident: false},
		{name: "cpu spike", cpu: 99, wantIncident: true, wantState: domain.StateResolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := newOrchestrator()
			p := NewPipeline(detector.New(detector.DefaultConfig(), zap.NewNop()), orch, PipelineConfig{}, zap.NewNop())

			result, err := p.Run(context.Background(), snapshot(tt.cpu))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if got := result.IncidentID != ""; got != tt.wantIncident {
				t.Fatalf("incident created = %v, want %v", got, tt.wantIncident)
			}
			if !tt.wantIncident {
				if result.Detection.Action != domain.ActionMonitor {
					t.Errorf("Action = %q, want monitor", result.Detection.Action)
				}
				return
			}
			if result.Incident == nil || result.Incident.State != tt.wantState {
				t.Errorf("Incident = %+v, want state %q", result.Incident, tt.wantState)
			}
		})
	}
}

func TestPipeline_Async(t *testing.T) {
	orch := newOrchestrator()
	alert := domain.Alert(domain.AlertParameters{Severity: domain.SeverityHigh, TriggerRCA: true})
	p := NewPipeline(stubDetector{result: alert}, orch, PipelineConfig{Async: true}, zap.NewNop())

	result, err := p.Run(context.Background(), snapshot(99))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.IncidentID == "" || result.Incident != nil {
		t.Fatalf("result = %+v, want only an incident id", result)
	}

	if err := orch.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	inc, err := orch.Get(result.IncidentID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if inc.State != domain.StateResolved {
		t.Errorf("State = %q, want resolved", inc.State)
	}
}

func TestPipeline_DetectorError(t *testing.T) {
	boom := domain.WrapError("detect", domain.ErrServiceUnavailable, domain.KindTransport)
	orch := newOrchestrator()
	p := NewPipeline(stubDetector{err: boom}, orch, PipelineConfig{}, zap.NewNop())

	if err := p.Ingest(context.Background(), snapshot(99)); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("Ingest() error = %v, want ErrServiceUnavailable", err)
	}
	if orch.Status().TrackedIncidents != 0 {
		t.Error("no incident should be opened when detection fails")
	}
}
