package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestLogs_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "single object", input: `{"level":"ERROR","message":"boom"}`, want: 1},
		{name: "list", input: `[{"level":"INFO"},{"level":"ERROR"}]`, want: 2},
		{name: "empty object", input: `{}`, want: 0},
		{name: "null", input: `null`, want: 0},
		{name: "empty list", input: `[]`, want: 0},
		{name: "string", input: `"ERROR"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs Logs
			err := json.Unmarshal([]byte(tt.input), &logs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(logs) != tt.want {
				t.Errorf("len(logs) = %d, want %d", len(logs), tt.want)
			}
		})
	}
}

func TestTelemetrySnapshot_MissingLogs(t *testing.T) {
	var snap TelemetrySnapshot
	if err := json.Unmarshal([]byte(`{"metrics":{"cpu":{"cpu_percent":10}}}`), &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if snap.Logs != nil {
		t.Errorf("Logs = %v, want nil", snap.Logs)
	}
}

func TestRootCause_UnmarshalJSON(t *testing.T) {
	var p VerdictParameters
	if err := json.Unmarshal([]byte(`{"root_cause":"disk filled by logs"}`), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.RootCause.Description != "disk filled by logs" {
		t.Errorf("Description = %q", p.RootCause.Description)
	}

	if err := json.Unmarshal([]byte(`{"root_cause":{"service":"auth"}}`), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.RootCause.Service != "auth" {
		t.Errorf("Service = %q", p.RootCause.Service)
	}
}

func TestVerdictParameters_ResolvedIssueType(t *testing.T) {
	tests := []struct {
		name   string
		params VerdictParameters
		want   string
	}{
		{name: "explicit", params: VerdictParameters{IssueType: "memory_high", Fixes: []string{"disk_full"}}, want: "memory_high"},
		{name: "fixes", params: VerdictParameters{Fixes: []string{"disk_full"}}, want: "disk_full"},
		{name: "recommended", params: VerdictParameters{RecommendedFixes: []string{"cpu_high"}}, want: "cpu_high"},
		{name: "none", params: VerdictParameters{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.ResolvedIssueType(); got != tt.want {
				t.Errorf("ResolvedIssueType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemediationRequest_FlattensParameters(t *testing.T) {
	req := RemediationRequest{
		IncidentID: "abc",
		VerdictParameters: VerdictParameters{
			IssueType: "memory_high",
			Target:    map[string]any{"container_name": "auth"},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(body, &flat); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if flat["issue_type"] != "memory_high" {
		t.Errorf("issue_type = %v, want memory_high", flat["issue_type"])
	}
	if _, ok := flat["target"]; !ok {
		t.Error("target missing from flattened body")
	}
}

func TestDetectionResult_Validate(t *testing.T) {
	if err := Monitor().Validate(); err != nil {
		t.Errorf("Monitor().Validate() = %v", err)
	}
	if err := (DetectionResult{Action: ActionAlert}).Validate(); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("alert without parameters: err = %v", err)
	}
	if err := (DetectionResult{Action: "get_metrics"}).Validate(); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("unknown action: err = %v", err)
	}
	if err := Alert(AlertParameters{Severity: SeverityHigh}).Validate(); err != nil {
		t.Errorf("valid alert: err = %v", err)
	}
}

func TestKindOf(t *testing.T) {
	err := WrapError("call_rca", ErrServiceTimeout, KindTimeout)
	if KindOf(err) != KindTimeout {
		t.Errorf("KindOf() = %q", KindOf(err))
	}
	if !errors.Is(err, ErrServiceTimeout) {
		t.Error("wrapped error should match sentinel")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("foreign error should have no kind")
	}
}
