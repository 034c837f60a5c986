package rca

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ai-devops/autoheal/internal/detector"
	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/pkg/sanitizer"
	"go.uber.org/zap"
)

// Analyzer is the in-process classifier. It runs the classification pipeline:
// 1. Sanitize the incident logs
// 2. Extract features when the caller did not send them
// 3. Apply the classification rules
// 4. Return rca_complete for a confident match, alert_only otherwise
type Analyzer struct {
	ruleEngine   *RuleEngine
	sanitizer    *sanitizer.Sanitizer
	dependencies map[string][]string
	logger       *zap.Logger
}

// NewAnalyzer creates a new Analyzer with all dependencies.
// dependencies maps a service to the services it depends on; it may be nil.
func NewAnalyzer(
	ruleEngine *RuleEngine,
	sanitizer *sanitizer.Sanitizer,
	dependencies map[string][]string,
	logger *zap.Logger,
) *Analyzer {
	return &Analyzer{
		ruleEngine:   ruleEngine,
		sanitizer:    sanitizer,
		dependencies: dependencies,
		logger:       logger.Named("analyzer"),
	}
}

// Classify implements Classifier.
func (a *Analyzer) Classify(ctx context.Context, req domain.ClassifierRequest) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.Verdict{}, domain.WrapError("classify", err, domain.KindTimeout)
	}

	startTime := time.Now()
	logger := a.logger.With(zap.String("incident_id", req.IncidentID))

	logs, stats := a.sanitizer.SanitizeLogs(req.Logs)
	if stats.Truncated {
		logger.Warn("logs truncated for classification",
			zap.Int("entries", stats.Entries),
			zap.Int("dropped", stats.Dropped),
		)
	}

	features := req.Features
	if features == nil {
		if f, ok := detector.ExtractFeatures(req.Metrics); ok {
			features = &f
		}
	}

	if sanitizer.IsEmpty(logs) && features == nil {
		return domain.Verdict{
			Action: domain.VerdictAlertOnly,
			Reason: "no logs or metrics to classify",
		}, nil
	}

	matches := a.ruleEngine.Analyze(sanitizer.Text(logs), features)
	best := a.ruleEngine.GetBestMatch(matches)
	if best == nil {
		reason := "no classification rule matched"
		if top := TopMatch(matches); top != nil {
			reason = fmt.Sprintf("best rule %s below confidence threshold (%.2f)", top.RuleID, top.Confidence)
		}
		logger.Info("classification inconclusive",
			zap.Int("match_count", len(matches)),
			zap.Duration("duration", time.Since(startTime)),
		)
		return domain.Verdict{Action: domain.VerdictAlertOnly, Reason: reason}, nil
	}

	service := serviceOf(req)
	params := &domain.VerdictParameters{
		IssueType:        best.IssueType,
		RootCause:        domain.RootCause{Service: service, Description: best.RootCause},
		AffectedServices: a.affected(service),
		Confidence:       best.Confidence,
		Fixes:            []string{best.IssueType},
		Target:           targetOf(service),
	}

	logger.Info("using rule-based verdict",
		zap.String("rule_id", best.RuleID),
		zap.String("issue_type", best.IssueType),
		zap.Float64("confidence", best.Confidence),
		zap.Duration("duration", time.Since(startTime)),
	)

	return domain.Verdict{Action: domain.VerdictRCAComplete, Parameters: params}, nil
}

// affected returns the root service followed by every service that depends
// on it, directly or transitively.
func (a *Analyzer) affected(root string) []string {
	if root == "" {
		return nil
	}

	services := make([]string, 0, len(a.dependencies))
	for svc := range a.dependencies {
		services = append(services, svc)
	}
	sort.Strings(services)

	out := []string{root}
	seen := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, svc := range services {
			if seen[svc] {
				continue
			}
			for _, dep := range a.dependencies[svc] {
				if dep == current {
					seen[svc] = true
					out = append(out, svc)
					queue = append(queue, svc)
					break
				}
			}
		}
	}
	return out
}

// serviceOf names the service an incident is about: an explicit metric
// label, else the first log source, else the host.
func serviceOf(req domain.ClassifierRequest) string {
	for _, key := range []string{"container_name", "service"} {
		if v, ok := req.Metrics[key].(string); ok && v != "" {
			return v
		}
	}
	for _, entry := range req.Logs {
		if entry.Source != "" {
			return entry.Source
		}
	}
	return req.Host
}

func targetOf(service string) map[string]any {
	if service == "" {
		return nil
	}
	return map[string]any{
		"service":        service,
		"container_name": service,
	}
}
