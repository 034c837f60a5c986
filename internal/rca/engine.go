package rca

import (
	"github.com/ai-devops/autoheal/internal/domain"
	"go.uber.org/zap"
)

// RuleMatch is a rule that fired for an incident.
type RuleMatch struct {
	RuleID     string
	Confidence float64
	IssueType  string
	RootCause  string
}

// RuleEngine applies classification rules to an incident context.
type RuleEngine struct {
	rules               []*Rule
	confidenceThreshold float64
	logger              *zap.Logger
}

// NewRuleEngine creates a new rule engine with the provided configuration.
func NewRuleEngine(rules []*Rule, confidenceThreshold float64, logger *zap.Logger) *RuleEngine {
	return &RuleEngine{
		rules:               rules,
		confidenceThreshold: confidenceThreshold,
		logger:              logger.Named("rule_engine"),
	}
}

// Analyze applies all rules and returns every match in rule order.
func (e *RuleEngine) Analyze(log string, features *domain.Features) []RuleMatch {
	var matches []RuleMatch

	for _, rule := range e.rules {
		if rule.Match(log, features) {
			e.logger.Debug("rule matched",
				zap.String("rule_id", rule.ID),
				zap.Float64("confidence", rule.Confidence),
			)

			matches = append(matches, RuleMatch{
				RuleID:     rule.ID,
				Confidence: rule.Confidence,
				IssueType:  rule.IssueType,
				RootCause:  rule.RootCause,
			})
		}
	}

	return matches
}

// GetBestMatch returns the highest confidence match that reaches the threshold.
// Ties keep the earlier rule. Returns nil if no match reaches the threshold.
func (e *RuleEngine) GetBestMatch(matches []RuleMatch) *RuleMatch {
	top := TopMatch(matches)
	if top == nil || top.Confidence < e.confidenceThreshold {
		return nil
	}
	return top
}

// TopMatch returns the highest confidence match regardless of threshold.
// Ties keep the earlier rule.
func TopMatch(matches []RuleMatch) *RuleMatch {
	var top *RuleMatch
	for i := range matches {
		if top == nil || matches[i].Confidence > top.Confidence {
			top = &matches[i]
		}
	}
	return top
}
