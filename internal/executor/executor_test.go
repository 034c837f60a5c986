package executor

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"go.uber.org/zap"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestExecutor_Run(t *testing.T) {
	requireBinary(t, "sh")
	ex := New(5*time.Second, zap.NewNop())

	tests := []struct {
		name       string
		argv       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "stdout trimmed",
			argv:       []string{"sh", "-c", "echo '  hello  '"},
			wantCode:   0,
			wantStdout: "hello",
		},
		{
			name:       "non-zero exit",
			argv:       []string{"sh", "-c", "echo oops >&2; exit 3"},
			wantCode:   3,
			wantStderr: "oops",
		},
		{
			name:     "no shell interpretation of arguments",
			argv:     []string{"echo", "$(id)", ";", "rm"},
			wantCode: 0,
			// the literal tokens come back unchanged
			wantStdout: "$(id) ; rm",
		},
		{
			name:     "missing binary",
			argv:     []string{"definitely-not-a-real-binary-xyz"},
			wantCode: StartFailureExitCode,
		},
		{
			name:       "empty argv",
			argv:       nil,
			wantCode:   StartFailureExitCode,
			wantStderr: "empty command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ex.Run(context.Background(), tt.argv)
			if got.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d (stderr %q)", got.ExitCode, tt.wantCode, got.Stderr)
			}
			if tt.wantStdout != "" && got.Stdout != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", got.Stdout, tt.wantStdout)
			}
			if tt.wantStderr != "" && got.Stderr != tt.wantStderr {
				t.Errorf("Stderr = %q, want %q", got.Stderr, tt.wantStderr)
			}
		})
	}
}

func TestExecutor_Timeout(t *testing.T) {
	requireBinary(t, "sleep")
	ex := New(100*time.Millisecond, zap.NewNop())

	start := time.Now()
	got := ex.Run(context.Background(), []string{"sleep", "5"})

	if got.ExitCode != TimeoutExitCode {
		t.Errorf("ExitCode = %d, want %d", got.ExitCode, TimeoutExitCode)
	}
	if got.Stderr != "Timeout" {
		t.Errorf("Stderr = %q, want Timeout", got.Stderr)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run took %v, expected to stop near the deadline", elapsed)
	}
}

func TestExecutor_NotStarted(t *testing.T) {
	ex := New(time.Second, zap.NewNop())

	expired, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name           string
		ctx            context.Context
		argv           []string
		wantNotStarted bool
	}{
		{name: "empty argv", ctx: context.Background(), argv: nil, wantNotStarted: true},
		{name: "missing binary", ctx: context.Background(), argv: []string{"definitely-not-a-real-binary-xyz"}, wantNotStarted: true},
		{name: "deadline already passed", ctx: expired, argv: []string{"true"}, wantNotStarted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ex.Run(tt.ctx, tt.argv)
			if got.NotStarted != tt.wantNotStarted {
				t.Errorf("NotStarted = %v, want %v (exit %d, stderr %q)", got.NotStarted, tt.wantNotStarted, got.ExitCode, got.Stderr)
			}
		})
	}
}

func TestExecutor_StartedCommandIsNotMarkedNotStarted(t *testing.T) {
	requireBinary(t, "sh")
	ex := New(5*time.Second, zap.NewNop())

	got := ex.Run(context.Background(), []string{"sh", "-c", "exit 2"})
	if got.NotStarted {
		t.Error("NotStarted = true for a command that ran")
	}
	if got.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", got.ExitCode)
	}
}
