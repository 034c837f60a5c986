package rca

import (
	"fmt"
	"math"

	"github.com/ai-devops/autoheal/internal/domain"
)

// DefaultValidator implements VerdictValidator with strict schema checks.
type DefaultValidator struct{}

// NewDefaultValidator creates a new verdict validator.
func NewDefaultValidator() *DefaultValidator {
	return &DefaultValidator{}
}

// Validate checks if the verdict conforms to the expected schema.
func (v *DefaultValidator) Validate(verdict *domain.Verdict) error {
	if verdict == nil {
		return invalid("validate", "verdict is nil")
	}

	switch verdict.Action {
	case domain.VerdictAlertOnly:
		return nil
	case domain.VerdictRCAComplete:
	default:
		return invalid("validate_action", fmt.Sprintf("action must be rca_complete or alert_only, got: %q", verdict.Action))
	}

	p := verdict.Parameters
	if p == nil {
		return invalid("validate_parameters", "rca_complete requires parameters")
	}

	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return invalid("validate_confidence", fmt.Sprintf("confidence must be between 0 and 1, got: %v", p.Confidence))
	}

	if p.ResolvedIssueType() == "" {
		return invalid("validate_issue_type", "issue_type or at least one fix is required")
	}

	for i, svc := range p.AffectedServices {
		if svc == "" {
			return invalid("validate_affected_services", fmt.Sprintf("affected_services[%d] is empty", i))
		}
	}

	switch p.StrategyOverride {
	case "", domain.StrategyManual, domain.StrategyAlertOnly:
	default:
		return invalid("validate_strategy_override", fmt.Sprintf("unknown strategy_override %q", p.StrategyOverride))
	}

	return nil
}

func invalid(op, msg string) error {
	return domain.WrapError(op, fmt.Errorf("%w: %s", domain.ErrInvalidResponse, msg), domain.KindValidation)
}
