// Package detector scores telemetry snapshots for anomalies.
package detector

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ai-devops/autoheal/internal/domain"
	"go.uber.org/zap"
)

// Config holds thresholds and weights of the statistical score.
type Config struct {
	CPUThreshold     float64
	MemoryThreshold  float64
	DiskThreshold    float64
	NetworkThreshold float64

	CPUWeight     float64
	MemoryWeight  float64
	DiskWeight    float64
	NetworkWeight float64

	// AnomalyThreshold is the combined score an alert must exceed.
	AnomalyThreshold float64
}

// DefaultConfig returns the stock thresholds and weights.
func DefaultConfig() Config {
	return Config{
		CPUThreshold:     75,
		MemoryThreshold:  75,
		DiskThreshold:    85,
		NetworkThreshold: 20000,
		CPUWeight:        1.5,
		MemoryWeight:     2.0,
		DiskWeight:       1.8,
		NetworkWeight:    1.0,
		AnomalyThreshold: 0.05,
	}
}

// logLevelWeights is the contribution of one log entry by level.
var logLevelWeights = map[string]float64{
	"INFO":     0.0,
	"WARNING":  0.1,
	"ERROR":    0.3,
	"CRITICAL": 0.6,
}

// Detector is a pure function of a snapshot and its configuration.
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Detector.
func New(cfg Config, logger *zap.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger.Named("detector"),
	}
}

// Detect implements the pipeline's detector contract in-process.
func (d *Detector) Detect(_ context.Context, snapshot domain.TelemetrySnapshot) (domain.DetectionResult, error) {
	return d.Evaluate(snapshot), nil
}

// Evaluate scores the snapshot. Missing or malformed metrics yield Monitor.
func (d *Detector) Evaluate(snapshot domain.TelemetrySnapshot) domain.DetectionResult {
	features, err := Features(snapshot.Metrics)
	if err != nil {
		d.logger.Debug("feature extraction failed, monitoring only",
			zap.String("host", snapshot.Host),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err),
		)
		return domain.Monitor()
	}

	statistical := d.StatisticalScore(features)
	logScore := LogScore(snapshot.Logs)
	combined := round4(statistical + logScore)

	if combined <= d.cfg.AnomalyThreshold {
		return domain.Monitor()
	}

	severity := Severity(combined)
	d.logger.Debug("anomaly detected",
		zap.Float64("anomaly_score", combined),
		zap.Float64("statistical_score", statistical),
		zap.Float64("log_score", logScore),
		zap.String("severity", string(severity)),
	)

	return domain.Alert(domain.AlertParameters{
		AnomalyScore:     combined,
		StatisticalScore: statistical,
		LogScore:         logScore,
		Severity:         severity,
		TriggerRCA:       severity.TriggersRCA(),
		Features:         features,
	})
}

// StatisticalScore is the weighted sum of relative threshold deviations.
// Network deviation is computed on rx+tx against a single threshold.
func (d *Detector) StatisticalScore(f domain.Features) float64 {
	c := d.cfg
	score := relativeDeviation(f.CPUPercent, c.CPUThreshold)*c.CPUWeight +
		relativeDeviation(f.MemoryPercent, c.MemoryThreshold)*c.MemoryWeight +
		relativeDeviation(f.DiskPercent, c.DiskThreshold)*c.DiskWeight +
		relativeDeviation(f.RxBytesPerSec+f.TxBytesPerSec, c.NetworkThreshold)*c.NetworkWeight
	return round4(score)
}

// LogScore weights log entries by level, scaled up when several are errors,
// and capped at 1.0.
func LogScore(logs domain.Logs) float64 {
	if len(logs) == 0 {
		return 0
	}

	var score float64
	errorCount := 0
	for _, entry := range logs {
		level := strings.ToUpper(entry.Level)
		score += logLevelWeights[level]
		if level == "ERROR" || level == "CRITICAL" {
			errorCount++
		}
	}

	switch {
	case errorCount > 3:
		score *= 1.5
	case errorCount > 1:
		score *= 1.2
	}

	return round4(math.Min(score, 1.0))
}

// Severity bands a combined score.
func Severity(score float64) domain.Severity {
	switch {
	case score > 0.7:
		return domain.SeverityCritical
	case score > 0.4:
		return domain.SeverityHigh
	case score > 0.2:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// ExtractFeatures reads the five required metrics. It fails closed: any
// missing or non-numeric field returns false.
func ExtractFeatures(metrics map[string]any) (domain.Features, bool) {
	f, err := Features(metrics)
	return f, err == nil
}

// Features is ExtractFeatures reporting the first bad field as an
// extraction error.
func Features(metrics map[string]any) (domain.Features, error) {
	var f domain.Features
	fields := []struct {
		group, name string
		dst         *float64
	}{
		{"cpu", "cpu_percent", &f.CPUPercent},
		{"memory", "used_percent", &f.MemoryPercent},
		{"disk", "used_percent", &f.DiskPercent},
		{"network", "rx_bytes_per_sec", &f.RxBytesPerSec},
		{"network", "tx_bytes_per_sec", &f.TxBytesPerSec},
	}

	for _, field := range fields {
		group, _ := metrics[field.group].(map[string]any)
		v, ok := toFloat(group[field.name])
		if !ok {
			err := fmt.Errorf("%w: %s.%s", domain.ErrMissingFeature, field.group, field.name)
			return domain.Features{}, domain.WrapError("extract_features", err, domain.KindExtraction)
		}
		*field.dst = v
	}
	return f, nil
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func relativeDeviation(value, threshold float64) float64 {
	if threshold <= 0 || value <= threshold {
		return 0
	}
	return (value - threshold) / threshold
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
