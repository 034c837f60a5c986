// Package orchestrator drives each alert through classification and
// remediation, tracking the incident lifecycle.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/metrics"
	"github.com/ai-devops/autoheal/internal/policy"
	"github.com/ai-devops/autoheal/pkg/sanitizer"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Classifier produces a root cause verdict for an incident.
type Classifier interface {
	Classify(ctx context.Context, req domain.ClassifierRequest) (domain.Verdict, error)
}

// Remediator executes the rulebook plan named by a verdict.
type Remediator interface {
	Remediate(ctx context.Context, req domain.RemediationRequest) (domain.RemediationOutcome, error)
}

// Policy decides whether a verdict may be remediated automatically.
type Policy interface {
	Evaluate(params domain.VerdictParameters, severity domain.Severity) policy.Decision
}

// IncidentLogger persists incident records. Calls must be idempotent.
type IncidentLogger interface {
	LogIncident(ctx context.Context, inc domain.Incident) error
}

// Emitter receives lifecycle events.
type Emitter interface {
	Publish(eventType string, data any)
}

// Lifecycle event types.
const (
	TopicCreated             = "incident.created"
	TopicRCAStarted          = "incident.rca_started"
	TopicRCACompleted        = "incident.rca_completed"
	TopicAlertOnly           = "incident.alert_only"
	TopicRemediationStarted  = "incident.remediation_started"
	TopicRemediationBlocked  = "incident.remediation_blocked"
	TopicRemediationDeferred = "incident.remediation_deferred"
	TopicResolved            = "incident.resolved"
	TopicFailed              = "incident.failed"
)

const (
	defaultRCATimeout   = 15 * time.Second
	defaultFixerTimeout = 30 * time.Second
)

// Config tunes the orchestrator.
type Config struct {
	EnableAutoRemediation bool
	Retention             time.Duration
	RCATimeout            time.Duration
	FixerTimeout          time.Duration
}

// Deps are the collaborators of the orchestrator. Classifier and Remediator
// are required; the rest may be nil.
type Deps struct {
	Classifier     Classifier
	Remediator     Remediator
	Policy         Policy
	IncidentLogger IncidentLogger
	Emitter        Emitter
	Sanitizer      *sanitizer.Sanitizer
}

// Status summarizes the incident table.
type Status struct {
	ActiveIncidents  int `json:"active_incident_count"`
	TrackedIncidents int `json:"tracked_incident_count"`
}

// Orchestrator owns the incident table. Incidents progress independently;
// one mutex guards the table and every record in it.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	incidents map[string]*record

	wg sync.WaitGroup
}

// New creates an orchestrator.
func New(cfg Config, deps Deps, logger *zap.Logger) *Orchestrator {
	if cfg.RCATimeout <= 0 {
		cfg.RCATimeout = defaultRCATimeout
	}
	if cfg.FixerTimeout <= 0 {
		cfg.FixerTimeout = defaultFixerTimeout
	}
	return &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		logger:    logger.Named("orchestrator"),
		now:       func() time.Time { return time.Now().UTC() },
		incidents: make(map[string]*record),
	}
}

// Process handles a detection synchronously. It returns nil when the
// detection does not alert, otherwise the incident as the run left it.
func (o *Orchestrator) Process(ctx context.Context, result domain.DetectionResult, snap domain.TelemetrySnapshot) *domain.Incident {
	rec := o.open(result, snap)
	if rec == nil {
		return nil
	}
	o.run(ctx, rec)

	o.mu.Lock()
	inc := rec.view()
	o.mu.Unlock()
	return &inc
}

// Submit opens the incident and runs the rest of the pipeline in the
// background. The run outlives ctx cancellation but not Wait.
func (o *Orchestrator) Submit(ctx context.Context, result domain.DetectionResult, snap domain.TelemetrySnapshot) (string, bool) {
	rec := o.open(result, snap)
	if rec == nil {
		return "", false
	}

	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(runCtx, rec)
	}()
	return rec.id, true
}

// Wait blocks until background runs finish or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// open allocates an incident for an alerting detection.
func (o *Orchestrator) open(result domain.DetectionResult, snap domain.TelemetrySnapshot) *record {
	if !result.IsAlert() {
		return nil
	}
	o.Purge()

	now := o.now()
	rec := newRecord(uuid.NewString(), now, result, snap)
	params := rec.params()
	rec.note(EventIncidentCreated, map[string]any{
		"severity":      params.Severity,
		"anomaly_score": params.AnomalyScore,
	}, now)

	o.mu.Lock()
	o.incidents[rec.id] = rec
	active := o.activeLocked()
	o.mu.Unlock()

	metrics.SetActiveIncidents(active)
	o.logger.Info("incident detected",
		zap.String("incident_id", rec.id),
		zap.String("severity", string(params.Severity)),
		zap.Float64("anomaly_score", params.AnomalyScore),
		zap.Bool("trigger_rca", params.TriggerRCA),
	)
	o.emit(TopicCreated, rec.id, map[string]any{
		"severity":      params.Severity,
		"anomaly_score": params.AnomalyScore,
		"host":          snap.Host,
	})
	return rec
}

func (o *Orchestrator) run(ctx context.Context, rec *record) {
	logger := o.logger.With(zap.String("incident_id", rec.id))

	o.mu.Lock()
	params := rec.params()
	o.mu.Unlock()

	if !params.TriggerRCA {
		o.finish(ctx, rec, domain.StateResolved, EventRCASkipped, map[string]any{
			"reason": "severity " + string(params.Severity) + " does not trigger root cause analysis",
		})
		return
	}

	verdict, ok := o.classify(ctx, rec, params, logger)
	if !ok {
		return
	}

	o.remediate(ctx, rec, params, verdict, logger)
}

// classify runs the RCA step. It reports false when the incident settled.
func (o *Orchestrator) classify(ctx context.Context, rec *record, params domain.AlertParameters, logger *zap.Logger) (*domain.VerdictParameters, bool) {
	o.mu.Lock()
	err := rec.advance(domain.StateRCAInProgress, o.now())
	req := o.classifierRequest(rec, params)
	o.mu.Unlock()
	if err != nil {
		logger.Error("state transition rejected", zap.Error(err))
		return nil, false
	}
	o.emit(TopicRCAStarted, rec.id, nil)

	rctx, cancel := context.WithTimeout(ctx, o.cfg.RCATimeout)
	start := time.Now()
	verdict, err := o.deps.Classifier.Classify(rctx, req)
	cancel()
	metrics.ObserveCall("rca", time.Since(start), err)

	if err != nil {
		logger.Error("classification failed",
			zap.Error(err),
			zap.String("kind", string(domain.KindOf(err))),
		)
		o.finish(ctx, rec, domain.StateFailed, EventRCAFailed, failure(err))
		return nil, false
	}

	switch {
	case verdict.Action == domain.VerdictAlertOnly:
		o.mu.Lock()
		rec.verdict = &verdict
		o.mu.Unlock()
		logger.Info("classifier returned alert only", zap.String("reason", verdict.Reason))
		o.emit(TopicAlertOnly, rec.id, map[string]any{"reason": verdict.Reason})
		o.finish(ctx, rec, domain.StateResolved, EventRCAAlertOnly, map[string]any{"reason": verdict.Reason})
		return nil, false

	case verdict.Action == domain.VerdictRCAComplete && verdict.Parameters != nil:
		o.mu.Lock()
		rec.verdict = &verdict
		rec.note(EventRCACompleted, verdict, o.now())
		o.mu.Unlock()
		logger.Info("root cause identified",
			zap.String("issue_type", verdict.Parameters.ResolvedIssueType()),
			zap.Float64("confidence", verdict.Parameters.Confidence),
		)
		o.emit(TopicRCACompleted, rec.id, verdict)
		return verdict.Parameters, true

	default:
		logger.Error("malformed classifier verdict", zap.String("action", string(verdict.Action)))
		o.finish(ctx, rec, domain.StateFailed, EventRCAFailed, map[string]any{
			"error": "malformed verdict",
			"kind":  domain.KindValidation,
		})
		return nil, false
	}
}

func (o *Orchestrator) remediate(ctx context.Context, rec *record, alert domain.AlertParameters, params *domain.VerdictParameters, logger *zap.Logger) {
	switch {
	case params.StrategyOverride == domain.StrategyAlertOnly:
		o.finish(ctx, rec, domain.StateResolved, EventRemediationSkipped, map[string]any{
			"reason": "classifier requested alert only",
		})
		return
	case !o.cfg.EnableAutoRemediation || params.StrategyOverride == domain.StrategyManual:
		reason := "auto remediation disabled"
		if params.StrategyOverride == domain.StrategyManual {
			reason = "classifier requested manual remediation"
		}
		o.pause(ctx, rec, reason)
		return
	}

	if o.deps.Policy != nil {
		decision := o.deps.Policy.Evaluate(*params, alert.Severity)
		if !decision.Allowed {
			logger.Warn("remediation blocked by policy", zap.String("reason", decision.Reason))
			o.emit(TopicRemediationBlocked, rec.id, map[string]any{"reason": decision.Reason})
			o.finish(ctx, rec, domain.StateResolved, EventRemediationBlocked, map[string]any{"reason": decision.Reason})
			return
		}
	}

	o.mu.Lock()
	err := rec.advance(domain.StateRemediationInProgress, o.now())
	o.mu.Unlock()
	if err != nil {
		logger.Error("state transition rejected", zap.Error(err))
		return
	}
	o.emit(TopicRemediationStarted, rec.id, map[string]any{"issue_type": params.ResolvedIssueType()})

	fctx, cancel := context.WithTimeout(ctx, o.cfg.FixerTimeout)
	start := time.Now()
	outcome, err := o.deps.Remediator.Remediate(fctx, domain.RemediationRequest{
		IncidentID:        rec.id,
		VerdictParameters: *params,
	})
	cancel()
	metrics.ObserveCall("fixer", time.Since(start), err)

	switch {
	case err != nil:
		logger.Error("remediation call failed",
			zap.Error(err),
			zap.String("kind", string(domain.KindOf(err))),
		)
		details := failure(err)
		if outcome.Status != "" {
			details["outcome"] = outcome
		}
		o.finish(ctx, rec, domain.StateFailed, EventRemediationFailed, details)
	case !outcome.Succeeded():
		logger.Warn("remediation failed",
			zap.String("issue_type", outcome.IssueType),
			zap.Bool("rolled_back", outcome.RolledBack),
		)
		details := failure(domain.WrapError("remediate",
			fmt.Errorf("%w: %s", domain.ErrRemediationFailed, outcome.Error), domain.KindExecution))
		details["outcome"] = outcome
		o.finish(ctx, rec, domain.StateFailed, EventRemediationFailed, details)
	default:
		logger.Info("remediation succeeded", zap.String("issue_type", outcome.IssueType))
		o.finish(ctx, rec, domain.StateResolved, EventRemediationCompleted, outcome)
	}
}

// finish records the final timeline entry, moves the incident to a
// terminal state and logs it.
func (o *Orchestrator) finish(ctx context.Context, rec *record, state domain.IncidentState, event string, details any) {
	o.mu.Lock()
	now := o.now()
	rec.note(event, details, now)
	err := rec.advance(state, now)
	rec.settledAt = now
	inc := rec.view()
	active := o.activeLocked()
	o.mu.Unlock()

	if err != nil {
		o.logger.Error("state transition rejected", zap.String("incident_id", rec.id), zap.Error(err))
	}

	metrics.ObserveIncidentFinished(string(inc.State))
	metrics.SetActiveIncidents(active)
	o.logIncident(ctx, inc)

	topic := TopicResolved
	if inc.State == domain.StateFailed {
		topic = TopicFailed
	}
	o.emit(topic, inc.ID, map[string]any{"state": inc.State, "event": event})
}

// pause ends the run without remediating. The incident stays in
// rca_in_progress awaiting a manual action.
func (o *Orchestrator) pause(ctx context.Context, rec *record, reason string) {
	o.mu.Lock()
	now := o.now()
	rec.note(EventRemediationPaused, map[string]any{"reason": reason}, now)
	rec.settledAt = now
	inc := rec.view()
	o.mu.Unlock()

	o.logger.Info("remediation deferred", zap.String("incident_id", inc.ID), zap.String("reason", reason))
	o.logIncident(ctx, inc)
	o.emit(TopicRemediationDeferred, inc.ID, map[string]any{"reason": reason})
}

func (o *Orchestrator) logIncident(ctx context.Context, inc domain.Incident) {
	if o.deps.IncidentLogger == nil {
		return
	}
	if err := o.deps.IncidentLogger.LogIncident(ctx, inc); err != nil {
		o.logger.Warn("failed to log incident", zap.String("incident_id", inc.ID), zap.Error(err))
	}
}

func (o *Orchestrator) emit(topic, incidentID string, data any) {
	if o.deps.Emitter == nil {
		return
	}
	o.deps.Emitter.Publish(topic, map[string]any{
		"incident_id": incidentID,
		"data":        data,
	})
}

// classifierRequest must be called with o.mu held.
func (o *Orchestrator) classifierRequest(rec *record, params domain.AlertParameters) domain.ClassifierRequest {
	logs := rec.snapshot.Logs
	if o.deps.Sanitizer != nil {
		logs, _ = o.deps.Sanitizer.SanitizeLogs(logs)
	}
	features := params.Features
	return domain.ClassifierRequest{
		IncidentID:   rec.id,
		Host:         rec.snapshot.Host,
		Severity:     params.Severity,
		AnomalyScore: params.AnomalyScore,
		Metrics:      rec.snapshot.Metrics,
		Logs:         logs,
		Traces:       rec.snapshot.Traces,
		Features:     &features,
	}
}

// Get returns a copy of one incident.
func (o *Orchestrator) Get(id string) (domain.Incident, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, ok := o.incidents[id]
	if !ok {
		return domain.Incident{}, domain.ErrIncidentNotFound
	}
	return rec.view(), nil
}

// List returns copies of all tracked incidents, newest first.
func (o *Orchestrator) List() []domain.Incident {
	o.mu.Lock()
	out := make([]domain.Incident, 0, len(o.incidents))
	for _, rec := range o.incidents {
		out = append(out, rec.view())
	}
	o.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].DetectionTime.After(out[j].DetectionTime)
	})
	return out
}

// Status returns the incident counts.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		ActiveIncidents:  o.activeLocked(),
		TrackedIncidents: len(o.incidents),
	}
}

// Purge drops incidents whose run ended more than the retention window ago.
func (o *Orchestrator) Purge() int {
	cutoff := o.now().Add(-o.cfg.Retention)

	o.mu.Lock()
	defer o.mu.Unlock()

	removed := 0
	for id, rec := range o.incidents {
		if !rec.settledAt.IsZero() && !rec.settledAt.After(cutoff) {
			delete(o.incidents, id)
			removed++
		}
	}
	if removed > 0 {
		o.logger.Debug("purged incidents", zap.Int("count", removed))
	}
	return removed
}

// RunJanitor purges on every tick until ctx ends.
func (o *Orchestrator) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Purge()
		}
	}
}

func (o *Orchestrator) activeLocked() int {
	n := 0
	for _, rec := range o.incidents {
		if !rec.state.IsTerminal() {
			n++
		}
	}
	return n
}

func failure(err error) map[string]any {
	return map[string]any{
		"error": err.Error(),
		"kind":  domain.KindOf(err),
	}
}
