// Package domain contains the core domain models and types.
// These models represent the service contracts of the incident pipeline and
// are independent of any infrastructure concerns.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Severity represents the severity band of a detected anomaly.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// IsValid checks if the severity value is one of the allowed values.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Rank orders severities from LOW (1) to CRITICAL (4); unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// TriggersRCA reports whether alerts of this severity go through classification.
func (s Severity) TriggersRCA() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// LogEntry is a single log line attached to a telemetry snapshot.
type LogEntry struct {
	Level     string `json:"level"`
	Message   string `json:"message,omitempty"`
	Source    string `json:"source,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Logs accepts either a single log object or a list of them on the wire.
type Logs []LogEntry

// UnmarshalJSON implements json.Unmarshaler.
func (l *Logs) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}

	switch trimmed[0] {
	case '[':
		var entries []LogEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return err
		}
		*l = entries
	case '{':
		var entry LogEntry
		if err := json.Unmarshal(trimmed, &entry); err != nil {
			return err
		}
		// An empty object carries no log line.
		if entry == (LogEntry{}) {
			*l = nil
			return nil
		}
		*l = Logs{entry}
	default:
		return fmt.Errorf("logs must be an object or a list, got %q", string(trimmed[:1]))
	}
	return nil
}

// Trace is one distributed trace as the tracing backend reports it.
type Trace map[string]any

// TelemetrySnapshot is a point-in-time view of a monitored host.
// Metrics are kept loosely typed because collectors nest them freely;
// the detector extracts the fields it needs.
type TelemetrySnapshot struct {
	Timestamp string         `json:"timestamp,omitempty"`
	Host      string         `json:"host,omitempty"`
	Metrics   map[string]any `json:"metrics"`
	Logs      Logs           `json:"logs,omitempty"`
	Traces    []Trace        `json:"traces,omitempty"`
}

// Features is the numeric vector the detector scores.
type Features struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	RxBytesPerSec float64 `json:"rx_bytes_per_sec"`
	TxBytesPerSec float64 `json:"tx_bytes_per_sec"`
}

// DetectionAction discriminates DetectionResult variants.
type DetectionAction string

const (
	ActionAlert   DetectionAction = "alert"
	ActionMonitor DetectionAction = "monitor"
)

// AlertParameters carries the scores of an alerting detection.
type AlertParameters struct {
	AnomalyScore     float64  `json:"anomaly_score"`
	StatisticalScore float64  `json:"statistical_score"`
	LogScore         float64  `json:"log_score"`
	Severity         Severity `json:"severity"`
	TriggerRCA       bool     `json:"trigger_rca"`
	Features         Features `json:"features"`
}

// DetectionResult is either Alert(parameters) or Monitor.
type DetectionResult struct {
	Action     DetectionAction  `json:"action"`
	Parameters *AlertParameters `json:"parameters,omitempty"`
}

// Alert builds an alerting detection result.
func Alert(params AlertParameters) DetectionResult {
	return DetectionResult{Action: ActionAlert, Parameters: &params}
}

// Monitor builds a non-alerting detection result.
func Monitor() DetectionResult {
	return DetectionResult{Action: ActionMonitor}
}

// IsAlert reports whether the result should open an incident.
func (r DetectionResult) IsAlert() bool {
	return r.Action == ActionAlert && r.Parameters != nil
}

// Validate checks the result received from a detector service.
func (r DetectionResult) Validate() error {
	switch r.Action {
	case ActionAlert:
		if r.Parameters == nil {
			return fmt.Errorf("%w: alert without parameters", ErrInvalidResponse)
		}
		if !r.Parameters.Severity.IsValid() {
			return fmt.Errorf("%w: unknown severity %q", ErrInvalidResponse, r.Parameters.Severity)
		}
		return nil
	case ActionMonitor:
		return nil
	default:
		return fmt.Errorf("%w: unknown detection action %q", ErrInvalidResponse, r.Action)
	}
}

// IncidentState is a node of the incident lifecycle.
type IncidentState string

const (
	StateAnomalyDetected       IncidentState = "anomaly_detected"
	StateRCAInProgress         IncidentState = "rca_in_progress"
	StateRemediationInProgress IncidentState = "remediation_in_progress"
	StateResolved              IncidentState = "resolved"
	StateFailed                IncidentState = "failed"
)

// IsTerminal reports whether no further transitions leave this state.
func (s IncidentState) IsTerminal() bool {
	return s == StateResolved || s == StateFailed
}

// TimelineEntry records one step of an incident's history.
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Details   any       `json:"details,omitempty"`
}

// Incident is a read-only copy of an incident record.
type Incident struct {
	ID                string            `json:"incident_id"`
	State             IncidentState     `json:"state"`
	DetectionTime     time.Time         `json:"detection_time"`
	DetectionResult   DetectionResult   `json:"detection_result"`
	TelemetrySnapshot TelemetrySnapshot `json:"telemetry_snapshot"`
	RCAResult         *Verdict          `json:"rca_result,omitempty"`
	Timeline          []TimelineEntry   `json:"timeline"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// VerdictAction discriminates classifier verdicts.
type VerdictAction string

const (
	VerdictRCAComplete VerdictAction = "rca_complete"
	VerdictAlertOnly   VerdictAction = "alert_only"
)

// RootCause accepts either a plain string or a {service, description} object.
type RootCause struct {
	Service     string `json:"service,omitempty"`
	Description string `json:"description,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RootCause) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = RootCause{Description: s}
		return nil
	}

	type plain RootCause
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*r = RootCause(p)
	return nil
}

// IsZero reports whether the root cause is empty.
func (r RootCause) IsZero() bool {
	return r.Service == "" && r.Description == ""
}

// VerdictParameters is the payload of an rca_complete verdict. It is also
// the body sent to the remediation service.
type VerdictParameters struct {
	IssueType        string         `json:"issue_type,omitempty"`
	RootCause        RootCause      `json:"root_cause"`
	AffectedServices []string       `json:"affected_services,omitempty"`
	Confidence       float64        `json:"confidence"`
	Fixes            []string       `json:"fixes,omitempty"`
	RecommendedFixes []string       `json:"recommended_fixes,omitempty"`
	Target           map[string]any `json:"target,omitempty"`
	StrategyOverride string         `json:"strategy_override,omitempty"`
}

// ResolvedIssueType returns the rulebook issue type named by the verdict:
// the explicit issue_type, else the first fix descriptor.
func (p VerdictParameters) ResolvedIssueType() string {
	if p.IssueType != "" {
		return p.IssueType
	}
	if len(p.Fixes) > 0 {
		return p.Fixes[0]
	}
	if len(p.RecommendedFixes) > 0 {
		return p.RecommendedFixes[0]
	}
	return ""
}

// Strategy overrides a classifier may request.
const (
	StrategyManual    = "manual"
	StrategyAlertOnly = "alert_only"
)

// Verdict is either rca_complete(parameters) or alert_only(reason).
type Verdict struct {
	Action     VerdictAction      `json:"action"`
	Parameters *VerdictParameters `json:"parameters,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// ClassifierRequest is the body of POST /analyze.
type ClassifierRequest struct {
	IncidentID   string         `json:"incident_id"`
	Host         string         `json:"host,omitempty"`
	Severity     Severity       `json:"severity"`
	AnomalyScore float64        `json:"anomaly_score"`
	Metrics      map[string]any `json:"metrics"`
	Logs         Logs           `json:"logs"`
	Traces       []Trace        `json:"traces,omitempty"`
	Features     *Features      `json:"features,omitempty"`
}

// RemediationRequest is the body of POST /execute.
type RemediationRequest struct {
	IncidentID string `json:"incident_id,omitempty"`
	VerdictParameters
}

// RemediationStatus is the only outcome signal of the remediation engine.
type RemediationStatus string

const (
	RemediationSuccess RemediationStatus = "success"
	RemediationFailed  RemediationStatus = "failed"
)

// ExecutionResult is the captured outcome of one command invocation.
type ExecutionResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`

	// NotStarted is set when the command never ran.
	NotStarted bool `json:"not_started,omitempty"`
}

// StepReport describes one executed command of a remediation run.
type StepReport struct {
	Action  string          `json:"action"`
	Command []string        `json:"command"`
	Result  ExecutionResult `json:"result"`
}

// RemediationOutcome is returned by the remediation engine.
type RemediationOutcome struct {
	Status      RemediationStatus `json:"status"`
	IssueType   string            `json:"issue_type,omitempty"`
	Steps       []StepReport      `json:"steps,omitempty"`
	HealthCheck *StepReport       `json:"health_check,omitempty"`
	Rollback    *StepReport       `json:"rollback,omitempty"`
	RolledBack  bool              `json:"rolled_back"`
	Error       string            `json:"error,omitempty"`
}

// Succeeded reports whether the remediation fully passed.
func (o RemediationOutcome) Succeeded() bool {
	return o.Status == RemediationSuccess
}

// Event is a lifecycle or log event streamed to observers.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}
