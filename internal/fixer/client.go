package fixer

import (
	"context"
	"fmt"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/transport"
	"go.uber.org/zap"
)

// Client calls a remote remediation service's POST /execute.
type Client struct {
	http   *transport.Client
	logger *zap.Logger
}

// NewClient creates a remediation service client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		http:   transport.New(baseURL, timeout),
		logger: logger.Named("fixer_client"),
	}
}

// Remediate sends the verdict parameters and validates the returned status.
func (c *Client) Remediate(ctx context.Context, req domain.RemediationRequest) (domain.RemediationOutcome, error) {
	var outcome domain.RemediationOutcome
	if err := c.http.PostJSON(ctx, "call_fixer", "/execute", req, &outcome); err != nil {
		c.logger.Warn("remediation call failed",
			zap.String("incident_id", req.IncidentID),
			zap.Error(err),
		)
		return domain.RemediationOutcome{Status: domain.RemediationFailed, Error: err.Error()}, err
	}

	switch outcome.Status {
	case domain.RemediationSuccess, domain.RemediationFailed:
		return outcome, nil
	default:
		err := fmt.Errorf("%w: remediation status %q", domain.ErrInvalidResponse, outcome.Status)
		return domain.RemediationOutcome{Status: domain.RemediationFailed, Error: err.Error()},
			domain.WrapError("validate_remediation", err, domain.KindValidation)
	}
}

// HealthCheck verifies the service answers GET /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.http.GetJSON(ctx, "health_check", "/health", nil)
}
