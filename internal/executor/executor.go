// Package executor runs remediation commands as argument vectors.
package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"go.uber.org/zap"
)

const (
	// TimeoutExitCode is reported when a command exceeds its deadline.
	TimeoutExitCode = -1

	// StartFailureExitCode is reported when the binary cannot be started.
	StartFailureExitCode = 127

	timeoutMessage = "Timeout"
)

// Runner executes a single command.
type Runner interface {
	// Run executes argv and always returns a well-formed result.
	Run(ctx context.Context, argv []string) domain.ExecutionResult
}

// Executor runs commands directly, never through a shell.
type Executor struct {
	timeout time.Duration
	logger  *zap.Logger
}

// New creates an Executor that bounds every command by timeout.
func New(timeout time.Duration, logger *zap.Logger) *Executor {
	return &Executor{
		timeout: timeout,
		logger:  logger.Named("executor"),
	}
}

// Run executes argv[0] with argv[1:] as arguments.
func (e *Executor) Run(ctx context.Context, argv []string) domain.ExecutionResult {
	if len(argv) == 0 || argv[0] == "" {
		return domain.ExecutionResult{ExitCode: StartFailureExitCode, Stderr: "empty command", NotStarted: true}
	}
	if ctx.Err() != nil {
		e.logger.Warn("deadline passed before command start", zap.Strings("argv", argv))
		return domain.ExecutionResult{ExitCode: TimeoutExitCode, Stderr: timeoutMessage, NotStarted: true}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children holding the pipes open must not outlive the deadline.
	cmd.WaitDelay = time.Second

	startTime := time.Now()
	err := cmd.Run()
	duration := time.Since(startTime)

	if ctx.Err() != nil {
		e.logger.Warn("command timed out",
			zap.Strings("argv", argv),
			zap.Duration("timeout", e.timeout),
		)
		return domain.ExecutionResult{ExitCode: TimeoutExitCode, Stderr: timeoutMessage}
	}

	result := domain.ExecutionResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = StartFailureExitCode
			result.NotStarted = cmd.Process == nil
			if result.Stderr == "" {
				result.Stderr = err.Error()
			}
		}
	}

	e.logger.Debug("command finished",
		zap.Strings("argv", argv),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", duration),
	)

	return result
}
