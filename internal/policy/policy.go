// Package policy decides whether a classified incident may be remediated
// without a human.
package policy

import (
	"fmt"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/rulebook"
)

// Config gates automatic remediation.
type Config struct {
	// MinConfidence is the lowest classifier confidence allowed to remediate.
	MinConfidence float64

	// Environment, when set, must equal the issue's declared environment.
	Environment string

	// BlockedActions always need a human, in addition to actions the
	// rulebook marks destructive.
	BlockedActions []string
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func deny(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Engine evaluates verdicts against the rulebook and the configured policy.
type Engine struct {
	cfg      Config
	blocked  map[string]bool
	rulebook *rulebook.Rulebook
}

// New creates a policy engine.
func New(cfg Config, rb *rulebook.Rulebook) *Engine {
	blocked := make(map[string]bool, len(cfg.BlockedActions))
	for _, a := range cfg.BlockedActions {
		blocked[a] = true
	}
	return &Engine{cfg: cfg, blocked: blocked, rulebook: rb}
}

// Evaluate returns whether the verdict's plan may run for an alert of the
// given severity.
func (e *Engine) Evaluate(params domain.VerdictParameters, severity domain.Severity) Decision {
	issueType := params.ResolvedIssueType()
	issue, err := e.rulebook.Issue(issueType)
	if err != nil {
		return deny("issue type %q is not in the rulebook", issueType)
	}

	if e.cfg.Environment != "" && issue.Environment != "" && issue.Environment != e.cfg.Environment {
		return deny("issue %q targets environment %q, running in %q", issueType, issue.Environment, e.cfg.Environment)
	}

	if params.Confidence < e.cfg.MinConfidence {
		return deny("confidence %.2f below policy minimum %.2f", params.Confidence, e.cfg.MinConfidence)
	}

	if issue.MinSeverity != "" && severity.Rank() < issue.MinSeverity.Rank() {
		return deny("severity %s below %s required by issue %q", severity, issue.MinSeverity, issueType)
	}

	actions, err := e.rulebook.PlanActions(issueType)
	if err != nil {
		return deny("%v", err)
	}
	for _, name := range actions {
		if e.blocked[name] || e.rulebook.Actions[name].Destructive {
			return deny("destructive action %q needs human intervention", name)
		}
	}

	return Decision{Allowed: true}
}
