// Package rca provides root-cause classifiers for incidents.
package rca

import (
	"context"

	"github.com/ai-devops/autoheal/internal/domain"
)

// Classifier turns an incident context into a verdict.
// Implementations must honour ctx for timeout and cancellation.
type Classifier interface {
	Classify(ctx context.Context, req domain.ClassifierRequest) (domain.Verdict, error)
}

// VerdictValidator defines the interface for validating classifier verdicts.
type VerdictValidator interface {
	// Validate checks if the verdict conforms to the expected schema.
	Validate(v *domain.Verdict) error
}
