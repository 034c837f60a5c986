// Package sanitizer masks secrets in incident logs before they leave the
// process and bounds their size.
package sanitizer

import (
	"regexp"
	"strings"

	"github.com/ai-devops/autoheal/internal/domain"
)

// Sanitizer masks secrets and enforces a total message budget.
type Sanitizer struct {
	patterns []*regexp.Regexp
	maxSize  int
}

// Pattern definitions for common secrets and sensitive data.
var defaultPatterns = []*regexp.Regexp{
	// API Keys (generic patterns)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?([a-zA-Z0-9_\-]{20,})['"]?`),
	regexp.MustCompile(`(?i)(secret[_-]?key|secretkey)\s*[:=]\s*['"]?([a-zA-Z0-9_\-]{20,})['"]?`),
	regexp.MustCompile(`(?i)(access[_-]?key|accesskey)\s*[:=]\s*['"]?([a-zA-Z0-9_\-]{16,})['"]?`),

	// Authentication tokens
	regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9_\-\.]+`),
	regexp.MustCompile(`(?i)(authorization:\s*)[a-zA-Z0-9_\-\.\s]+`),
	regexp.MustCompile(`(?i)(token|auth[_-]?token)\s*[:=]\s*['"]?([a-zA-Z0-9_\-\.]{20,})['"]?`),

	// Passwords
	regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*['"]?([^\s'"]{4,})['"]?`),

	// AWS credentials
	regexp.MustCompile(`(?i)AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*['"]?([a-zA-Z0-9/+=]{40})['"]?`),

	// Private keys
	regexp.MustCompile(`-----BEGIN\s+(RSA|DSA|EC|OPENSSH)?\s*PRIVATE KEY-----`),
	regexp.MustCompile(`-----BEGIN\s+PGP\s+PRIVATE\s+KEY\s+BLOCK-----`),

	// Database connection strings
	regexp.MustCompile(`(?i)(mongodb|mysql|postgres|postgresql|redis):\/\/[^@]+@[^\s]+`),
	regexp.MustCompile(`(?i)(connection[_-]?string)\s*[:=]\s*['"]?([^\s'"]+)['"]?`),

	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36}`),

	// JWT tokens
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),

	// Slack tokens
	regexp.MustCompile(`xox[baprs]-[0-9a-zA-Z-]+`),

	// Generic high-entropy strings that look like secrets
	regexp.MustCompile(`(?i)(secret|private|credential)\s*[:=]\s*['"]?([a-zA-Z0-9_\-]{16,})['"]?`),

	// Email addresses (PII)
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
}

// New creates a new Sanitizer with default patterns.
func New(maxSize int) *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns,
		maxSize:  maxSize,
	}
}

// Stats describes one sanitization pass.
type Stats struct {
	Entries      int
	Dropped      int
	Truncated    bool
	SecretsFound int
}

// Sanitize trims, truncates and masks a single text.
func (s *Sanitizer) Sanitize(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > s.maxSize {
		text = text[:s.maxSize]
	}
	return s.maskSecrets(text)
}

// SanitizeLogs masks every log message and keeps entries in order until the
// message budget is spent. The entry that crosses the budget is cut short and
// the rest are dropped. The input slice is not modified.
func (s *Sanitizer) SanitizeLogs(logs domain.Logs) (domain.Logs, Stats) {
	stats := Stats{Entries: len(logs)}
	if len(logs) == 0 {
		return nil, stats
	}

	out := make(domain.Logs, 0, len(logs))
	budget := s.maxSize
	for i, entry := range logs {
		if budget <= 0 {
			stats.Dropped = len(logs) - i
			stats.Truncated = true
			break
		}

		msg := strings.TrimSpace(entry.Message)
		if len(msg) > budget {
			msg = msg[:budget]
			stats.Truncated = true
		}
		budget -= len(msg)

		stats.SecretsFound += s.countSecrets(msg)
		entry.Message = s.maskSecrets(msg)
		entry.Source = s.maskSecrets(entry.Source)
		out = append(out, entry)
	}

	return out, stats
}

// Text renders logs as one "LEVEL [source] message" line per entry.
func Text(logs domain.Logs) string {
	var b strings.Builder
	for i, entry := range logs {
		if i > 0 {
			b.WriteByte('\n')
		}
		if entry.Level != "" {
			b.WriteString(strings.ToUpper(entry.Level))
			b.WriteByte(' ')
		}
		if entry.Source != "" {
			b.WriteString("[" + entry.Source + "] ")
		}
		b.WriteString(entry.Message)
	}
	return b.String()
}

// IsEmpty reports whether no entry carries a message.
func IsEmpty(logs domain.Logs) bool {
	for _, entry := range logs {
		if strings.TrimSpace(entry.Message) != "" {
			return false
		}
	}
	return true
}

func (s *Sanitizer) countSecrets(text string) int {
	n := 0
	for _, pattern := range s.patterns {
		n += len(pattern.FindAllStringIndex(text, -1))
	}
	return n
}

// maskSecrets replaces sensitive patterns with masked versions.
func (s *Sanitizer) maskSecrets(text string) string {
	result := text

	for _, pattern := range s.patterns {
		result = pattern.ReplaceAllStringFunc(result, maskValue)
	}

	return result
}

// maskValue creates a masked version of a matched secret.
func maskValue(match string) string {
	if len(match) <= 8 {
		return "[REDACTED]"
	}

	// Keep the key name of key=value pairs.
	if idx := strings.IndexAny(match, ":="); idx != -1 {
		return match[:idx+1] + "[REDACTED]"
	}

	return match[:4] + "****" + match[len(match)-4:]
}
