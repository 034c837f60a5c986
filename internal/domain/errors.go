package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure cases.
var (
	// ErrServiceTimeout indicates a downstream service did not respond in time.
	ErrServiceTimeout = errors.New("service timeout")

	// ErrServiceUnavailable indicates a downstream service could not be reached
	// or answered with a non-2xx status.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInvalidResponse indicates a downstream response failed validation.
	ErrInvalidResponse = errors.New("invalid service response")

	// ErrMissingFeature indicates a required metric is absent or not numeric.
	ErrMissingFeature = errors.New("missing feature")

	// ErrRemediationFailed indicates a remediation plan ran and did not pass.
	ErrRemediationFailed = errors.New("remediation failed")

	// ErrUnknownIssue indicates an issue type that is not in the rulebook.
	ErrUnknownIssue = errors.New("unknown issue type")

	// ErrActionNotAllowed indicates an action name that is not in the rulebook.
	ErrActionNotAllowed = errors.New("action not allowed")

	// ErrUnresolvedPlaceholder indicates a command template references a
	// target field that was not supplied.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

	// ErrInvalidRulebook indicates the rulebook failed to load or validate.
	ErrInvalidRulebook = errors.New("invalid rulebook")

	// ErrIllegalTransition indicates an incident state change outside the lifecycle.
	ErrIllegalTransition = errors.New("illegal incident transition")

	// ErrIncidentNotFound indicates no incident with the given id is tracked.
	ErrIncidentNotFound = errors.New("incident not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorKind classifies a failure by where the pipeline recovers it.
type ErrorKind string

const (
	KindExtraction ErrorKind = "extraction"
	KindTransport  ErrorKind = "transport"
	KindValidation ErrorKind = "validation"
	KindExecution  ErrorKind = "execution"
	KindTimeout    ErrorKind = "timeout"
)

// PipelineError wraps an error with the failing operation and its kind.
type PipelineError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Kind is the taxonomy bucket of the failure.
	Kind ErrorKind
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// WrapError creates a new PipelineError with context.
func WrapError(op string, err error, kind ErrorKind) *PipelineError {
	return &PipelineError{
		Op:   op,
		Err:  err,
		Kind: kind,
	}
}

// KindOf returns the kind of a pipeline error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
