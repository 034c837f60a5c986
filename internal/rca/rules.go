package rca

import (
	"regexp"
	"strings"

	"github.com/ai-devops/autoheal/internal/domain"
)

// Rule represents a single root-cause classification rule.
type Rule struct {
	// ID is the unique identifier for this rule.
	ID string

	// Name is a human-readable name for the rule.
	Name string

	// Patterns are regex patterns to match against log content.
	Patterns []*regexp.Regexp

	// Keywords are simple string matches (case-insensitive).
	Keywords []string

	// Metric matches on the extracted feature vector, if present.
	Metric func(f domain.Features) bool

	// Confidence is the confidence level when this rule matches (0.0-1.0).
	Confidence float64

	// IssueType is the rulebook issue the rule points at.
	IssueType string

	// RootCause describes the failure.
	RootCause string
}

// Match checks if the log text or the features match this rule.
func (r *Rule) Match(log string, features *domain.Features) bool {
	if features != nil && r.Metric != nil && r.Metric(*features) {
		return true
	}

	if log == "" {
		return false
	}

	logLower := strings.ToLower(log)

	// Check keywords first (faster)
	for _, kw := range r.Keywords {
		if strings.Contains(logLower, strings.ToLower(kw)) {
			return true
		}
	}

	for _, pattern := range r.Patterns {
		if pattern.MatchString(log) {
			return true
		}
	}

	return false
}

// DefaultRules returns the built-in rules. Issue types line up with the
// sample rulebook shipped with the server.
func DefaultRules() []*Rule {
	return []*Rule{
		outOfMemory(),
		memoryPressure(),
		diskSpaceFull(),
		cpuSaturation(),
		networkSaturation(),
		connectionTimeout(),
		portAlreadyInUse(),
		dockerDaemonNotRunning(),
		imagePullFailure(),
		sslCertificateError(),
	}
}

func outOfMemory() *Rule {
	return &Rule{
		ID:       "out_of_memory",
		Name:     "Out of Memory",
		Keywords: []string{"out of memory", "oomkilled", "memory allocation failed", "heap out of memory"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)out\s+of\s+memory`),
			regexp.MustCompile(`(?i)OOMKilled`),
			regexp.MustCompile(`(?i)Cannot allocate memory`),
			regexp.MustCompile(`(?i)java\.lang\.OutOfMemoryError`),
		},
		Confidence: 0.95,
		IssueType:  "memory_high",
		RootCause:  "The process exhausted available memory and was killed or is failing allocations.",
	}
}

func memoryPressure() *Rule {
	return &Rule{
		ID:         "memory_pressure",
		Name:       "Memory Pressure",
		Metric:     func(f domain.Features) bool { return f.MemoryPercent >= 90 },
		Confidence: 0.8,
		IssueType:  "memory_high",
		RootCause:  "Memory usage is above 90% of capacity.",
	}
}

func diskSpaceFull() *Rule {
	return &Rule{
		ID:       "disk_space_full",
		Name:     "Disk Space Full",
		Keywords: []string{"no space left on device", "disk full", "enospc"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)no space left on device`),
			regexp.MustCompile(`(?i)ENOSPC`),
			regexp.MustCompile(`(?i)disk\s+quota\s+exceeded`),
		},
		Metric:     func(f domain.Features) bool { return f.DiskPercent >= 95 },
		Confidence: 0.95,
		IssueType:  "disk_full",
		RootCause:  "The disk has run out of available space.",
	}
}

func cpuSaturation() *Rule {
	return &Rule{
		ID:         "cpu_saturation",
		Name:       "CPU Saturation",
		Metric:     func(f domain.Features) bool { return f.CPUPercent >= 90 },
		Confidence: 0.75,
		IssueType:  "cpu_high",
		RootCause:  "CPU usage is above 90%; the workload is saturated.",
	}
}

func networkSaturation() *Rule {
	return &Rule{
		ID:         "network_saturation",
		Name:       "Network Saturation",
		Metric:     func(f domain.Features) bool { return f.RxBytesPerSec+f.TxBytesPerSec >= 50000 },
		Confidence: 0.65,
		IssueType:  "network_saturation",
		RootCause:  "Network throughput is far above the expected baseline.",
	}
}

func connectionTimeout() *Rule {
	return &Rule{
		ID:       "connection_timeout",
		Name:     "Connection Timeout",
		Keywords: []string{"connection timed out", "etimedout", "connection refused"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)connection\s+timed?\s*out`),
			regexp.MustCompile(`(?i)ECONNREFUSED`),
			regexp.MustCompile(`(?i)dial tcp.*timeout`),
			regexp.MustCompile(`(?i)i/o timeout`),
		},
		Confidence: 0.85,
		IssueType:  "service_unreachable",
		RootCause:  "A dependency is not accepting connections or is timing out.",
	}
}

func portAlreadyInUse() *Rule {
	return &Rule{
		ID:       "port_in_use",
		Name:     "Port Already In Use",
		Keywords: []string{"address already in use", "eaddrinuse", "port is already allocated"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)bind.*port.*already`),
			regexp.MustCompile(`(?i)port\s+\d+.*is already allocated`),
		},
		Confidence: 0.95,
		IssueType:  "port_conflict",
		RootCause:  "The service cannot bind its port because another process holds it.",
	}
}

func dockerDaemonNotRunning() *Rule {
	return &Rule{
		ID:       "docker_daemon_not_running",
		Name:     "Docker Daemon Not Running",
		Keywords: []string{"cannot connect to the docker daemon", "docker daemon is not running"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)is the docker daemon running`),
			regexp.MustCompile(`(?i)docker\.sock.*no such file`),
		},
		Confidence: 0.95,
		IssueType:  "docker_daemon_down",
		RootCause:  "The Docker daemon is not running or not accessible.",
	}
}

func imagePullFailure() *Rule {
	return &Rule{
		ID:       "image_pull_failure",
		Name:     "Image Pull Failure",
		Keywords: []string{"imagepullbackoff", "errimagepull", "failed to pull image"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)rpc error.*pulling image`),
		},
		Confidence: 0.9,
		IssueType:  "image_pull_failure",
		RootCause:  "The container image cannot be pulled from its registry.",
	}
}

func sslCertificateError() *Rule {
	return &Rule{
		ID:       "ssl_certificate_error",
		Name:     "SSL Certificate Error",
		Keywords: []string{"certificate verify failed", "certificate expired"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)SSL.*certificate.*expired`),
			regexp.MustCompile(`(?i)x509.*certificate`),
		},
		// No automatic fix exists; the verdict stays below the default threshold.
		Confidence: 0.5,
		IssueType:  "certificate_error",
		RootCause:  "TLS certificate validation failed.",
	}
}
