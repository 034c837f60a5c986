package orchestrator

import (
	"fmt"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
)

// transitions lists every legal state change. Anything absent is illegal.
var transitions = map[domain.IncidentState][]domain.IncidentState{
	domain.StateAnomalyDetected: {
		domain.StateRCAInProgress,
		domain.StateResolved,
	},
	domain.StateRCAInProgress: {
		domain.StateRemediationInProgress,
		domain.StateResolved,
		domain.StateFailed,
	},
	domain.StateRemediationInProgress: {
		domain.StateResolved,
		domain.StateFailed,
	},
}

// CanTransition reports whether an incident may move from one state to another.
func CanTransition(from, to domain.IncidentState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Timeline event names.
const (
	EventIncidentCreated      = "incident_created"
	EventRCASkipped           = "rca_skipped"
	EventRCACompleted         = "rca_completed"
	EventRCAAlertOnly         = "rca_alert_only"
	EventRCAFailed            = "rca_failed"
	EventRemediationSkipped   = "remediation_skipped"
	EventRemediationPaused    = "remediation_paused"
	EventRemediationBlocked   = "remediation_blocked"
	EventRemediationCompleted = "remediation_completed"
	EventRemediationFailed    = "remediation_failed"
)

// record is the mutable incident owned by the Orchestrator. Its state only
// changes through advance. All access happens under Orchestrator.mu.
type record struct {
	id            string
	state         domain.IncidentState
	detectionTime time.Time
	detection     domain.DetectionResult
	snapshot      domain.TelemetrySnapshot
	verdict       *domain.Verdict
	timeline      []domain.TimelineEntry
	updatedAt     time.Time

	// settledAt is set once the pipeline run for this incident has ended,
	// including runs that paused before remediation.
	settledAt time.Time
}

func newRecord(id string, now time.Time, result domain.DetectionResult, snap domain.TelemetrySnapshot) *record {
	return &record{
		id:            id,
		state:         domain.StateAnomalyDetected,
		detectionTime: now,
		detection:     result,
		snapshot:      snap,
		updatedAt:     now,
	}
}

func (r *record) advance(to domain.IncidentState, now time.Time) error {
	if !CanTransition(r.state, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, r.state, to)
	}
	r.state = to
	r.updatedAt = now
	return nil
}

func (r *record) note(event string, details any, now time.Time) {
	r.timeline = append(r.timeline, domain.TimelineEntry{
		Timestamp: now,
		Event:     event,
		Details:   details,
	})
	r.updatedAt = now
}

func (r *record) params() domain.AlertParameters {
	if r.detection.Parameters == nil {
		return domain.AlertParameters{}
	}
	return *r.detection.Parameters
}

// view returns a copy safe to hand out of the lock.
func (r *record) view() domain.Incident {
	timeline := make([]domain.TimelineEntry, len(r.timeline))
	copy(timeline, r.timeline)

	var verdict *domain.Verdict
	if r.verdict != nil {
		v := *r.verdict
		verdict = &v
	}

	return domain.Incident{
		ID:                r.id,
		State:             r.state,
		DetectionTime:     r.detectionTime,
		DetectionResult:   r.detection,
		TelemetrySnapshot: r.snapshot,
		RCAResult:         verdict,
		Timeline:          timeline,
		UpdatedAt:         r.updatedAt,
	}
}
