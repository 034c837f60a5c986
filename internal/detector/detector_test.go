package detector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"go.uber.org/zap"
)

func metrics(cpu, mem, disk, rx, tx any) map[string]any {
	return map[string]any{
		"cpu":     map[string]any{"cpu_percent": cpu},
		"memory":  map[string]any{"used_percent": mem},
		"disk":    map[string]any{"used_percent": disk},
		"network": map[string]any{"rx_bytes_per_sec": rx, "tx_bytes_per_sec": tx},
	}
}

func logs(levels ...string) domain.Logs {
	out := make(domain.Logs, 0, len(levels))
	for _, l := range levels {
		out = append(out, domain.LogEntry{Level: l, Message: "msg"})
	}
	return out
}

func TestDetector_Evaluate(t *testing.T) {
	d := New(DefaultConfig(), zap.NewNop())

	tests := []struct {
		name         string
		snapshot     domain.TelemetrySnapshot
		wantAlert    bool
		wantScore    float64
		wantSeverity domain.Severity
		wantRCA      bool
	}{
		{
			name:      "all below threshold",
			snapshot:  domain.TelemetrySnapshot{Metrics: metrics(10.0, 20.0, 30.0, 100.0, 100.0)},
			wantAlert: false,
		},
		{
			name:         "cpu 95 scores 0.4",
			snapshot:     domain.TelemetrySnapshot{Metrics: metrics(95.0, 40.0, 40.0, 0.0, 0.0)},
			wantAlert:    true,
			wantScore:    0.4,
			wantSeverity: domain.SeverityMedium,
			wantRCA:      false,
		},
		{
			name:         "network sum over threshold",
			snapshot:     domain.TelemetrySnapshot{Metrics: metrics(10.0, 10.0, 10.0, 30000.0, 10000.0)},
			wantAlert:    true,
			wantScore:    1.0,
			wantSeverity: domain.SeverityCritical,
			wantRCA:      true,
		},
		{
			name:         "two errors scaled by 1.2",
			snapshot:     domain.TelemetrySnapshot{Metrics: metrics(10.0, 10.0, 10.0, 0.0, 0.0), Logs: logs("ERROR", "error")},
			wantAlert:    true,
			wantScore:    0.72,
			wantSeverity: domain.SeverityCritical,
			wantRCA:      true,
		},
		{
			name:         "single warning is a low alert",
			snapshot:     domain.TelemetrySnapshot{Metrics: metrics(10.0, 10.0, 10.0, 0.0, 0.0), Logs: logs("WARNING")},
			wantAlert:    true,
			wantScore:    0.1,
			wantSeverity: domain.SeverityLow,
		},
		{
			name:         "memory and disk",
			snapshot:     domain.TelemetrySnapshot{Metrics: metrics(10.0, 90.0, 90.0, 0.0, 0.0)},
			wantAlert:    true,
			wantScore:    0.5059,
			wantSeverity: domain.SeverityHigh,
			wantRCA:      true,
		},
		{
			name:      "missing metric fails closed",
			snapshot:  domain.TelemetrySnapshot{Metrics: map[string]any{"cpu": map[string]any{"cpu_percent": 99.0}}, Logs: logs("CRITICAL")},
			wantAlert: false,
		},
		{
			name:      "non-numeric metric fails closed",
			snapshot:  domain.TelemetrySnapshot{Metrics: metrics("lots", 10.0, 10.0, 0.0, 0.0)},
			wantAlert: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Evaluate(tt.snapshot)
			if got.IsAlert() != tt.wantAlert {
				t.Fatalf("IsAlert() = %v, want %v (result %+v)", got.IsAlert(), tt.wantAlert, got)
			}
			if !tt.wantAlert {
				if got.Action != domain.ActionMonitor || got.Parameters != nil {
					t.Errorf("got %+v, want bare monitor", got)
				}
				return
			}
			p := got.Parameters
			if p.AnomalyScore != tt.wantScore {
				t.Errorf("AnomalyScore = %v, want %v", p.AnomalyScore, tt.wantScore)
			}
			if p.Severity != tt.wantSeverity {
				t.Errorf("Severity = %v, want %v", p.Severity, tt.wantSeverity)
			}
			if p.TriggerRCA != tt.wantRCA {
				t.Errorf("TriggerRCA = %v, want %v", p.TriggerRCA, tt.wantRCA)
			}
		})
	}
}

func TestDetector_FeaturesUnmodified(t *testing.T) {
	d := New(DefaultConfig(), zap.NewNop())
	got := d.Evaluate(domain.TelemetrySnapshot{Metrics: metrics(97.25, 81.5, 12.0, 1234.5, 42.0)})
	if !got.IsAlert() {
		t.Fatal("expected alert")
	}
	want := domain.Features{CPUPercent: 97.25, MemoryPercent: 81.5, DiskPercent: 12, RxBytesPerSec: 1234.5, TxBytesPerSec: 42}
	if got.Parameters.Features != want {
		t.Errorf("Features = %+v, want %+v", got.Parameters.Features, want)
	}
}

func TestLogScore(t *testing.T) {
	tests := []struct {
		name string
		logs domain.Logs
		want float64
	}{
		{name: "none", logs: nil, want: 0},
		{name: "info only", logs: logs("INFO", "INFO"), want: 0},
		{name: "one critical one warning", logs: logs("CRITICAL", "WARNING"), want: 0.7},
		{name: "four errors capped", logs: logs("ERROR", "ERROR", "ERROR", "ERROR"), want: 1.0},
		{name: "unknown level ignored", logs: logs("DEBUG", "TRACE"), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LogScore(tt.logs); got != tt.want {
				t.Errorf("LogScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.Severity
	}{
		{0.06, domain.SeverityLow},
		{0.2, domain.SeverityLow},
		{0.21, domain.SeverityMedium},
		{0.4, domain.SeverityMedium},
		{0.41, domain.SeverityHigh},
		{0.7, domain.SeverityHigh},
		{0.71, domain.SeverityCritical},
	}
	for _, tt := range tests {
		if got := Severity(tt.score); got != tt.want {
			t.Errorf("Severity(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestExtractFeatures_NumericStrings(t *testing.T) {
	f, ok := ExtractFeatures(metrics("95", "40.5", 10, int64(7), 0.0))
	if !ok {
		t.Fatal("ExtractFeatures() failed on numeric strings and ints")
	}
	if f.CPUPercent != 95 || f.MemoryPercent != 40.5 || f.DiskPercent != 10 || f.RxBytesPerSec != 7 {
		t.Errorf("Features = %+v", f)
	}
}

func TestFeatures_ExtractionError(t *testing.T) {
	m := metrics(50, 50, 50, 0, 0)
	delete(m["network"].(map[string]any), "tx_bytes_per_sec")

	_, err := Features(m)
	if !errors.Is(err, domain.ErrMissingFeature) {
		t.Fatalf("Features() error = %v, want ErrMissingFeature", err)
	}
	if domain.KindOf(err) != domain.KindExtraction {
		t.Errorf("KindOf() = %q, want extraction", domain.KindOf(err))
	}
	if !strings.Contains(err.Error(), "network.tx_bytes_per_sec") {
		t.Errorf("error %q does not name the field", err)
	}

	if _, err := Features(map[string]any{"cpu": "not a group"}); domain.KindOf(err) != domain.KindExtraction {
		t.Errorf("malformed group: err = %v", err)
	}
}

func TestClient_Detect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("path = %s, want /detect", r.URL.Path)
		}
		var snap domain.TelemetrySnapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(domain.Alert(domain.AlertParameters{
			AnomalyScore: 0.9,
			Severity:     domain.SeverityCritical,
			TriggerRCA:   true,
		}))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, zap.NewNop())
	got, err := c.Detect(context.Background(), domain.TelemetrySnapshot{Metrics: metrics(1.0, 1.0, 1.0, 1.0, 1.0)})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !got.IsAlert() || got.Parameters.Severity != domain.SeverityCritical {
		t.Errorf("Detect() = %+v", got)
	}
}

func TestClient_DetectInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"action":"alert"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, zap.NewNop())
	_, err := c.Detect(context.Background(), domain.TelemetrySnapshot{})
	if !errors.Is(err, domain.ErrInvalidResponse) {
		t.Errorf("Detect() error = %v, want ErrInvalidResponse", err)
	}
	if domain.KindOf(err) != domain.KindValidation {
		t.Errorf("KindOf() = %q, want validation", domain.KindOf(err))
	}
}

func TestClient_HealthCheck(t *testing.T) {
	var unhealthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, zap.NewNop())
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	unhealthy.Store(true)
	if err := c.HealthCheck(context.Background()); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("HealthCheck() error = %v, want ErrServiceUnavailable", err)
	}
}
