// Package fixer runs rulebook remediation plans with health verification
// and rollback.
package fixer

import (
	"context"
	"fmt"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/executor"
	"github.com/ai-devops/autoheal/internal/metrics"
	"github.com/ai-devops/autoheal/internal/rulebook"
	"go.uber.org/zap"
)

// Engine executes remediation plans. It is safe for concurrent use.
type Engine struct {
	rulebook *rulebook.Rulebook
	runner   executor.Runner
	logger   *zap.Logger
}

// NewEngine creates a remediation engine over an immutable rulebook.
func NewEngine(rb *rulebook.Rulebook, runner executor.Runner, logger *zap.Logger) *Engine {
	return &Engine{
		rulebook: rb,
		runner:   runner,
		logger:   logger.Named("fixer"),
	}
}

// plan is a fully rendered remediation: no placeholder is left to resolve
// once execution starts.
type plan struct {
	steps       []resolvedCommand
	healthCheck *resolvedCommand
	criteria    rulebook.SuccessCriteria
	rollback    *resolvedCommand
}

type resolvedCommand struct {
	action string
	argv   []string
}

// Remediate serves the remediation service contract in-process.
func (e *Engine) Remediate(ctx context.Context, req domain.RemediationRequest) (domain.RemediationOutcome, error) {
	return e.Handle(ctx, req.ResolvedIssueType(), req.Target)
}

// Handle runs the plan of issueType against target.
// Validation failures (unknown issue, unresolved placeholder) return an error
// and execute nothing; every other outcome is reported through the status.
func (e *Engine) Handle(ctx context.Context, issueType string, target map[string]any) (domain.RemediationOutcome, error) {
	logger := e.logger.With(zap.String("issue_type", issueType))

	p, err := e.resolve(issueType, target)
	if err != nil {
		logger.Warn("remediation rejected", zap.Error(err))
		metrics.ObserveRemediation(issueType, "rejected")
		return domain.RemediationOutcome{
			Status:    domain.RemediationFailed,
			IssueType: issueType,
			Error:     err.Error(),
		}, domain.WrapError("resolve_plan", err, domain.KindValidation)
	}

	outcome := e.execute(ctx, p, logger)
	outcome.IssueType = issueType
	metrics.ObserveRemediation(issueType, string(outcome.Status))
	return outcome, nil
}

func (e *Engine) resolve(issueType string, target map[string]any) (*plan, error) {
	if issueType == "" {
		return nil, fmt.Errorf("%w: no issue type in request", domain.ErrUnknownIssue)
	}

	issue, err := e.rulebook.Issue(issueType)
	if err != nil {
		return nil, err
	}

	p := &plan{}
	for _, step := range issue.OrderedSteps() {
		argv, err := e.rulebook.ResolveAction(step.Action, target)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Action, err)
		}
		p.steps = append(p.steps, resolvedCommand{action: step.Action, argv: argv})
	}

	if issue.HealthCheck != "" {
		argv, criteria, err := e.rulebook.ResolveHealthCheck(issue.HealthCheck, target)
		if err != nil {
			return nil, fmt.Errorf("health check %q: %w", issue.HealthCheck, err)
		}
		p.healthCheck = &resolvedCommand{action: issue.HealthCheck, argv: argv}
		p.criteria = criteria
	}

	if issue.Rollback != nil {
		argv, err := e.rulebook.ResolveAction(issue.Rollback.Action, target)
		if err != nil {
			return nil, fmt.Errorf("rollback %q: %w", issue.Rollback.Action, err)
		}
		p.rollback = &resolvedCommand{action: issue.Rollback.Action, argv: argv}
	}

	return p, nil
}

func (e *Engine) execute(ctx context.Context, p *plan, logger *zap.Logger) domain.RemediationOutcome {
	var outcome domain.RemediationOutcome

	for _, step := range p.steps {
		logger.Info("executing step",
			zap.String("action", step.action),
			zap.Strings("argv", step.argv),
		)
		result := e.runner.Run(ctx, step.argv)
		metrics.ObserveCommand("step", result.ExitCode)
		outcome.Steps = append(outcome.Steps, domain.StepReport{
			Action:  step.action,
			Command: step.argv,
			Result:  result,
		})

		if result.ExitCode != 0 {
			logger.Warn("step failed",
				zap.String("action", step.action),
				zap.Int("exit_code", result.ExitCode),
				zap.String("stderr", result.Stderr),
			)
			outcome.Error = fmt.Sprintf("step %s exited with %d", step.action, result.ExitCode)
			return e.rollback(ctx, p, outcome, logger)
		}
	}

	if p.healthCheck == nil {
		outcome.Status = domain.RemediationSuccess
		logger.Info("remediation succeeded without health check")
		return outcome
	}

	result := e.runner.Run(ctx, p.healthCheck.argv)
	metrics.ObserveCommand("health_check", result.ExitCode)
	outcome.HealthCheck = &domain.StepReport{
		Action:  p.healthCheck.action,
		Command: p.healthCheck.argv,
		Result:  result,
	}

	if !p.criteria.Match(result) {
		logger.Warn("health check failed",
			zap.String("health_check", p.healthCheck.action),
			zap.Int("exit_code", result.ExitCode),
			zap.String("stdout", result.Stdout),
		)
		outcome.Error = fmt.Sprintf("health check %s did not pass", p.healthCheck.action)
		return e.rollback(ctx, p, outcome, logger)
	}

	outcome.Status = domain.RemediationSuccess
	logger.Info("remediation succeeded", zap.Int("steps", len(outcome.Steps)))
	return outcome
}

// rollback runs the declared rollback action once. Its result is recorded
// but never changes the failed status. The rollback ignores the caller's
// deadline and is bounded only by the runner's own command timeout.
func (e *Engine) rollback(ctx context.Context, p *plan, outcome domain.RemediationOutcome, logger *zap.Logger) domain.RemediationOutcome {
	outcome.Status = domain.RemediationFailed
	if p.rollback == nil {
		return outcome
	}

	logger.Info("executing rollback", zap.String("action", p.rollback.action))
	result := e.runner.Run(context.WithoutCancel(ctx), p.rollback.argv)
	metrics.ObserveCommand("rollback", result.ExitCode)
	outcome.Rollback = &domain.StepReport{
		Action:  p.rollback.action,
		Command: p.rollback.argv,
		Result:  result,
	}
	outcome.RolledBack = !result.NotStarted
	if result.NotStarted {
		logger.Error("rollback could not start",
			zap.String("action", p.rollback.action),
			zap.String("stderr", result.Stderr),
		)
	} else if result.ExitCode != 0 {
		logger.Error("rollback failed",
			zap.String("action", p.rollback.action),
			zap.Int("exit_code", result.ExitCode),
			zap.String("stderr", result.Stderr),
		)
	}
	return outcome
}
