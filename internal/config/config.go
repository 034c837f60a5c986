// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Downstream service endpoints and deadlines
	Services ServicesConfig

	// Incident pipeline behaviour
	Pipeline PipelineConfig

	// Anomaly detector tuning
	Detector DetectorConfig

	// Remediation policy
	Policy PolicyConfig

	// Event broadcast hub
	Hub HubConfig

	// Optional telemetry poller
	Telemetry TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP port to listen on.
	Port string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// IngressRateLimit is the per-client request rate allowed on ingress routes.
	IngressRateLimit float64

	// IngressBurst is the token bucket size for ingress routes.
	IngressBurst int
}

// ServicesConfig locates the detector, classifier and remediation services.
// An empty URL selects the in-process implementation.
type ServicesConfig struct {
	DetectorURL     string
	DetectorTimeout time.Duration

	RCAURL     string
	RCATimeout time.Duration

	FixerURL     string
	FixerTimeout time.Duration

	// CommandTimeout bounds every remediation command. Steps and the health
	// check are also cut off by the caller's deadline (FixerTimeout for an
	// in-process fixer); a rollback is bounded by CommandTimeout alone.
	CommandTimeout time.Duration

	// RulebookPath is the JSON or YAML rulebook loaded at startup.
	RulebookPath string
}

// PipelineConfig contains incident orchestration settings.
type PipelineConfig struct {
	// EnableAutoRemediation lets the orchestrator run remediation after a
	// completed classification.
	EnableAutoRemediation bool

	// Async runs incident handling in the background after ingress returns.
	Async bool

	// IncidentRetention is how long terminal incidents stay inspectable.
	IncidentRetention time.Duration

	// MaxLogSize bounds the log text forwarded to the classifier.
	MaxLogSize int

	// RuleConfidenceThreshold is the minimum confidence for the in-process
	// classifier to return a completed verdict.
	RuleConfidenceThreshold float64

	// AuditCapacity bounds the in-memory incident audit log.
	AuditCapacity int

	// ServiceDependencies maps a service to the services it calls, used to
	// list downstream services affected by a root cause.
	ServiceDependencies map[string][]string
}

// DetectorConfig contains thresholds and weights of the statistical detector.
type DetectorConfig struct {
	CPUThreshold     float64
	MemoryThreshold  float64
	DiskThreshold    float64
	NetworkThreshold float64

	CPUWeight     float64
	MemoryWeight  float64
	DiskWeight    float64
	NetworkWeight float64

	// AnomalyThreshold is the combined score above which a snapshot alerts.
	AnomalyThreshold float64
}

// PolicyConfig gates automatic remediation.
type PolicyConfig struct {
	// MinConfidence is the lowest classifier confidence allowed to remediate.
	MinConfidence float64

	// Environment, when set, must match the rulebook issue environment.
	Environment string

	// BlockedActions are rulebook actions that always need a human.
	BlockedActions []string
}

// HubConfig contains event broadcast settings.
type HubConfig struct {
	// BufferSize is the replay ring capacity.
	BufferSize int

	// ClientBuffer is the live send queue per observer on top of the replay.
	ClientBuffer int
}

// TelemetryConfig configures the optional collector poller.
type TelemetryConfig struct {
	MetricsURL string
	LogsURL    string
	Interval   time.Duration
	Timeout    time.Duration

	// TracesURL is read by a separate connector merged into the poller.
	TracesURL string

	// Host labels collected snapshots. Defaults to the machine hostname.
	Host string

	// Services narrows the query to the named services.
	Services []string
}

// Enabled reports whether a telemetry source is configured.
func (t TelemetryConfig) Enabled() bool {
	return t.MetricsURL != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:             getEnvOrDefault("PORT", "8000"),
			ReadTimeout:      getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:     getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IngressRateLimit: getFloatOrDefault("INGRESS_RATE_LIMIT", 50),
			IngressBurst:     getIntOrDefault("INGRESS_BURST", 100),
		},
		Services: ServicesConfig{
			DetectorURL:     strings.TrimRight(os.Getenv("DETECTOR_SERVICE_URL"), "/"),
			DetectorTimeout: getDurationOrDefault("DETECTOR_TIMEOUT", 10*time.Second),
			RCAURL:          strings.TrimRight(os.Getenv("RCA_SERVICE_URL"), "/"),
			RCATimeout:      getDurationOrDefault("RCA_TIMEOUT", 15*time.Second),
			FixerURL:        strings.TrimRight(os.Getenv("FIXER_SERVICE_URL"), "/"),
			FixerTimeout:    getDurationOrDefault("FIXER_TIMEOUT", 30*time.Second),
			CommandTimeout:  getDurationOrDefault("COMMAND_TIMEOUT", 90*time.Second),
			RulebookPath:    getEnvOrDefault("RULEBOOK_PATH", "rulebook.json"),
		},
		Pipeline: PipelineConfig{
			EnableAutoRemediation:   getBoolOrDefault("ENABLE_AUTO_REMEDIATION", true),
			Async:                   getBoolOrDefault("PIPELINE_ASYNC", true),
			IncidentRetention:       getDurationOrDefault("INCIDENT_RETENTION", 15*time.Minute),
			MaxLogSize:              getIntOrDefault("MAX_LOG_SIZE", 50000), // ~50KB
			RuleConfidenceThreshold: getFloatOrDefault("RULE_CONFIDENCE_THRESHOLD", 0.6),
			AuditCapacity:           getIntOrDefault("AUDIT_CAPACITY", 1000),
			ServiceDependencies:     getDependencies("SERVICE_DEPENDENCIES"),
		},
		Detector: DetectorConfig{
			CPUThreshold:     getFloatOrDefault("DETECTOR_CPU_THRESHOLD", 75),
			MemoryThreshold:  getFloatOrDefault("DETECTOR_MEMORY_THRESHOLD", 75),
			DiskThreshold:    getFloatOrDefault("DETECTOR_DISK_THRESHOLD", 85),
			NetworkThreshold: getFloatOrDefault("DETECTOR_NETWORK_THRESHOLD", 20000),
			CPUWeight:        getFloatOrDefault("DETECTOR_CPU_WEIGHT", 1.5),
			MemoryWeight:     getFloatOrDefault("DETECTOR_MEMORY_WEIGHT", 2.0),
			DiskWeight:       getFloatOrDefault("DETECTOR_DISK_WEIGHT", 1.8),
			NetworkWeight:    getFloatOrDefault("DETECTOR_NETWORK_WEIGHT", 1.0),
			AnomalyThreshold: getFloatOrDefault("DETECTOR_ANOMALY_THRESHOLD", 0.05),
		},
		Policy: PolicyConfig{
			MinConfidence:  getFloatOrDefault("POLICY_MIN_CONFIDENCE", 0),
			Environment:    os.Getenv("POLICY_ENVIRONMENT"),
			BlockedActions: getListOrDefault("POLICY_BLOCKED_ACTIONS", nil),
		},
		Hub: HubConfig{
			BufferSize:   getIntOrDefault("EVENT_BUFFER_SIZE", 5000),
			ClientBuffer: getIntOrDefault("EVENT_CLIENT_BUFFER", 256),
		},
		Telemetry: TelemetryConfig{
			MetricsURL: os.Getenv("TELEMETRY_METRICS_URL"),
			LogsURL:    os.Getenv("TELEMETRY_LOGS_URL"),
			TracesURL:  os.Getenv("TELEMETRY_TRACES_URL"),
			Interval:   getDurationOrDefault("TELEMETRY_INTERVAL", 30*time.Second),
			Timeout:    getDurationOrDefault("TELEMETRY_TIMEOUT", 10*time.Second),
			Host:       getEnvOrDefault("TELEMETRY_HOST", hostname()),
			Services:   getListOrDefault("TELEMETRY_SERVICES", nil),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Services.RulebookPath == "" {
		return fmt.Errorf("%w: RULEBOOK_PATH is required", domain.ErrInvalidConfig)
	}

	timeouts := map[string]time.Duration{
		"DETECTOR_TIMEOUT": c.Services.DetectorTimeout,
		"RCA_TIMEOUT":      c.Services.RCATimeout,
		"FIXER_TIMEOUT":    c.Services.FixerTimeout,
		"COMMAND_TIMEOUT":  c.Services.CommandTimeout,
	}
	for key, d := range timeouts {
		if d < time.Second {
			return fmt.Errorf("%w: %s must be at least 1 second", domain.ErrInvalidConfig, key)
		}
	}

	if c.Hub.BufferSize < 1 {
		return fmt.Errorf("%w: EVENT_BUFFER_SIZE must be positive", domain.ErrInvalidConfig)
	}

	if c.Hub.ClientBuffer < 1 {
		return fmt.Errorf("%w: EVENT_CLIENT_BUFFER must be positive", domain.ErrInvalidConfig)
	}

	d := c.Detector
	for key, v := range map[string]float64{
		"DETECTOR_CPU_THRESHOLD":     d.CPUThreshold,
		"DETECTOR_MEMORY_THRESHOLD":  d.MemoryThreshold,
		"DETECTOR_DISK_THRESHOLD":    d.DiskThreshold,
		"DETECTOR_NETWORK_THRESHOLD": d.NetworkThreshold,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", domain.ErrInvalidConfig, key)
		}
	}

	if c.Policy.MinConfidence < 0 || c.Policy.MinConfidence > 1 {
		return fmt.Errorf("%w: POLICY_MIN_CONFIDENCE must be between 0 and 1", domain.ErrInvalidConfig)
	}

	if c.Pipeline.RuleConfidenceThreshold < 0 || c.Pipeline.RuleConfidenceThreshold > 1 {
		return fmt.Errorf("%w: RULE_CONFIDENCE_THRESHOLD must be between 0 and 1", domain.ErrInvalidConfig)
	}

	if c.Pipeline.MaxLogSize < 1000 {
		return fmt.Errorf("%w: MAX_LOG_SIZE must be at least 1000 bytes", domain.ErrInvalidConfig)
	}

	if c.Pipeline.AuditCapacity < 1 {
		return fmt.Errorf("%w: AUDIT_CAPACITY must be positive", domain.ErrInvalidConfig)
	}

	if c.Server.IngressRateLimit <= 0 || c.Server.IngressBurst < 1 {
		return fmt.Errorf("%w: INGRESS_RATE_LIMIT and INGRESS_BURST must be positive", domain.ErrInvalidConfig)
	}

	if c.Telemetry.Enabled() && c.Telemetry.Interval < time.Second {
		return fmt.Errorf("%w: TELEMETRY_INTERVAL must be at least 1 second", domain.ErrInvalidConfig)
	}

	return nil
}

// Public returns the subset of configuration exposed by GET /status.
func (c *Config) Public() map[string]any {
	return map[string]any{
		"enable_auto_remediation": c.Pipeline.EnableAutoRemediation,
		"detector_service_url":    c.Services.DetectorURL,
		"rca_service_url":         c.Services.RCAURL,
		"fixer_service_url":       c.Services.FixerURL,
		"detector_timeout":        c.Services.DetectorTimeout.String(),
		"rca_timeout":             c.Services.RCATimeout.String(),
		"fixer_timeout":           c.Services.FixerTimeout.String(),
		"command_timeout":         c.Services.CommandTimeout.String(),
		"incident_retention":      c.Pipeline.IncidentRetention.String(),
		"event_buffer_size":       c.Hub.BufferSize,
		"async":                   c.Pipeline.Async,
		"telemetry_enabled":       c.Telemetry.Enabled(),
	}
}

// Helper functions for reading environment variables

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Try parsing as seconds first (e.g., "15")
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		// Try parsing as duration string (e.g., "15s", "1m")
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getDependencies parses "api=db|cache;web=api" into a dependency map.
// Malformed entries are skipped.
func getDependencies(key string) map[string][]string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	deps := make(map[string][]string)
	for _, entry := range strings.Split(val, ";") {
		service, targets, ok := strings.Cut(entry, "=")
		service = strings.TrimSpace(service)
		if !ok || service == "" {
			continue
		}
		for _, t := range strings.Split(targets, "|") {
			if t = strings.TrimSpace(t); t != "" {
				deps[service] = append(deps[service], t)
			}
		}
	}
	return deps
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}
