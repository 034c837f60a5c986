// Package rulebook loads the declarative remediation plans.
// A rulebook is read once at startup and is immutable afterwards, so a single
// instance can be shared by any number of concurrent remediation runs.
package rulebook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ai-devops/autoheal/internal/domain"
	"gopkg.in/yaml.v3"
)

// Step is one remediation action of an issue plan.
type Step struct {
	Action   string `json:"action" yaml:"action"`
	Priority int    `json:"priority" yaml:"priority"`
}

// Rollback names the action run after a failed plan.
type Rollback struct {
	Action string `json:"action" yaml:"action"`
}

// Issue is the remediation plan for one issue type.
type Issue struct {
	Environment string    `json:"environment,omitempty" yaml:"environment,omitempty"`
	Steps       []Step    `json:"steps" yaml:"steps"`
	HealthCheck string    `json:"health_check,omitempty" yaml:"health_check,omitempty"`
	Rollback    *Rollback `json:"rollback,omitempty" yaml:"rollback,omitempty"`

	// MinSeverity, when set, is the lowest alert severity allowed to run
	// this plan automatically.
	MinSeverity domain.Severity `json:"min_severity,omitempty" yaml:"min_severity,omitempty"`
}

// OrderedSteps returns the steps in ascending priority. Steps with equal
// priority keep their declared order.
func (i Issue) OrderedSteps() []Step {
	steps := make([]Step, len(i.Steps))
	copy(steps, i.Steps)
	sort.SliceStable(steps, func(a, b int) bool {
		return steps[a].Priority < steps[b].Priority
	})
	return steps
}

// Action is an allowed command.
type Action struct {
	CommandTemplate []string `json:"command_template" yaml:"command_template"`

	// Destructive actions are never run without a human.
	Destructive bool `json:"destructive,omitempty" yaml:"destructive,omitempty"`
}

// SuccessCriteria decides whether a health check passed.
type SuccessCriteria struct {
	ExitCode     *int    `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	StdoutEquals *string `json:"stdout_equals,omitempty" yaml:"stdout_equals,omitempty"`
}

// Match reports whether the result satisfies any declared criterion.
func (c SuccessCriteria) Match(result domain.ExecutionResult) bool {
	if c.ExitCode != nil && result.ExitCode == *c.ExitCode {
		return true
	}
	if c.StdoutEquals != nil && result.Stdout == *c.StdoutEquals {
		return true
	}
	return false
}

// HealthCheck is a post-remediation verification command.
type HealthCheck struct {
	CommandTemplate []string        `json:"command_template" yaml:"command_template"`
	SuccessCriteria SuccessCriteria `json:"success_criteria" yaml:"success_criteria"`
}

// Rulebook maps issue types to plans, actions and health checks.
type Rulebook struct {
	Issues       map[string]Issue       `json:"issues" yaml:"issues"`
	Actions      map[string]Action      `json:"actions" yaml:"actions"`
	HealthChecks map[string]HealthCheck `json:"health_checks" yaml:"health_checks"`
}

// Load reads and validates a rulebook file. Files ending in .yaml or .yml
// are decoded as YAML, everything else as JSON.
func Load(path string) (*Rulebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidRulebook, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes and validates a JSON rulebook.
func ParseJSON(data []byte) (*Rulebook, error) {
	var rb Rulebook
	if err := json.Unmarshal(data, &rb); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", domain.ErrInvalidRulebook, err)
	}
	if err := rb.Validate(); err != nil {
		return nil, err
	}
	return &rb, nil
}

// ParseYAML decodes and validates a YAML rulebook.
func ParseYAML(data []byte) (*Rulebook, error) {
	var rb Rulebook
	if err := yaml.Unmarshal(data, &rb); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", domain.ErrInvalidRulebook, err)
	}
	if err := rb.Validate(); err != nil {
		return nil, err
	}
	return &rb, nil
}

// Validate checks that every reference in the rulebook resolves.
func (rb *Rulebook) Validate() error {
	if len(rb.Issues) == 0 {
		return fmt.Errorf("%w: no issues defined", domain.ErrInvalidRulebook)
	}

	for name, action := range rb.Actions {
		if len(action.CommandTemplate) == 0 || action.CommandTemplate[0] == "" {
			return fmt.Errorf("%w: action %q has an empty command_template", domain.ErrInvalidRulebook, name)
		}
		if err := checkTemplate(action.CommandTemplate); err != nil {
			return fmt.Errorf("%w: action %q: %v", domain.ErrInvalidRulebook, name, err)
		}
	}

	for name, hc := range rb.HealthChecks {
		if len(hc.CommandTemplate) == 0 || hc.CommandTemplate[0] == "" {
			return fmt.Errorf("%w: health check %q has an empty command_template", domain.ErrInvalidRulebook, name)
		}
		if err := checkTemplate(hc.CommandTemplate); err != nil {
			return fmt.Errorf("%w: health check %q: %v", domain.ErrInvalidRulebook, name, err)
		}
		if hc.SuccessCriteria.ExitCode == nil && hc.SuccessCriteria.StdoutEquals == nil {
			return fmt.Errorf("%w: health check %q declares no success_criteria", domain.ErrInvalidRulebook, name)
		}
	}

	for name, issue := range rb.Issues {
		for _, step := range issue.Steps {
			if _, ok := rb.Actions[step.Action]; !ok {
				return fmt.Errorf("%w: issue %q references unknown action %q", domain.ErrInvalidRulebook, name, step.Action)
			}
		}
		if issue.HealthCheck != "" {
			if _, ok := rb.HealthChecks[issue.HealthCheck]; !ok {
				return fmt.Errorf("%w: issue %q references unknown health check %q", domain.ErrInvalidRulebook, name, issue.HealthCheck)
			}
		}
		if issue.Rollback != nil {
			if _, ok := rb.Actions[issue.Rollback.Action]; !ok {
				return fmt.Errorf("%w: issue %q references unknown rollback action %q", domain.ErrInvalidRulebook, name, issue.Rollback.Action)
			}
		}
		if issue.MinSeverity != "" && !issue.MinSeverity.IsValid() {
			return fmt.Errorf("%w: issue %q has invalid min_severity %q", domain.ErrInvalidRulebook, name, issue.MinSeverity)
		}
	}

	return nil
}

// Issue returns the plan for an issue type.
func (rb *Rulebook) Issue(issueType string) (Issue, error) {
	issue, ok := rb.Issues[issueType]
	if !ok {
		return Issue{}, fmt.Errorf("%w: %q", domain.ErrUnknownIssue, issueType)
	}
	return issue, nil
}

// IssueTypes returns the known issue types in sorted order.
func (rb *Rulebook) IssueTypes() []string {
	names := make([]string, 0, len(rb.Issues))
	for name := range rb.Issues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveAction renders an action's command for the given target.
func (rb *Rulebook) ResolveAction(name string, target map[string]any) ([]string, error) {
	action, ok := rb.Actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrActionNotAllowed, name)
	}
	return Render(action.CommandTemplate, target)
}

// ResolveHealthCheck renders a health check's command for the given target.
func (rb *Rulebook) ResolveHealthCheck(name string, target map[string]any) ([]string, SuccessCriteria, error) {
	hc, ok := rb.HealthChecks[name]
	if !ok {
		return nil, SuccessCriteria{}, fmt.Errorf("%w: health check %q", domain.ErrInvalidRulebook, name)
	}
	argv, err := Render(hc.CommandTemplate, target)
	if err != nil {
		return nil, SuccessCriteria{}, err
	}
	return argv, hc.SuccessCriteria, nil
}

// PlanActions returns every action name an issue may run, rollback included.
func (rb *Rulebook) PlanActions(issueType string) ([]string, error) {
	issue, err := rb.Issue(issueType)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(issue.Steps)+1)
	for _, step := range issue.OrderedSteps() {
		names = append(names, step.Action)
	}
	if issue.Rollback != nil {
		names = append(names, issue.Rollback.Action)
	}
	return names, nil
}
