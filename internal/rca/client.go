package rca

import (
	"context"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/transport"
	"go.uber.org/zap"
)

// Client calls a remote classifier's POST /analyze. It makes exactly one
// attempt per incident.
type Client struct {
	http      *transport.Client
	validator VerdictValidator
	logger    *zap.Logger
}

// NewClient creates a classifier service client.
func NewClient(baseURL string, timeout time.Duration, validator VerdictValidator, logger *zap.Logger) *Client {
	return &Client{
		http:      transport.New(baseURL, timeout),
		validator: validator,
		logger:    logger.Named("rca_client"),
	}
}

// Classify sends the incident context and validates the verdict.
func (c *Client) Classify(ctx context.Context, req domain.ClassifierRequest) (domain.Verdict, error) {
	startTime := time.Now()
	logger := c.logger.With(zap.String("incident_id", req.IncidentID))

	var verdict domain.Verdict
	if err := c.http.PostJSON(ctx, "call_rca", "/analyze", req, &verdict); err != nil {
		logger.Warn("classifier call failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)),
		)
		return domain.Verdict{}, err
	}

	if err := c.validator.Validate(&verdict); err != nil {
		logger.Warn("classifier returned invalid verdict", zap.Error(err))
		return domain.Verdict{}, err
	}

	logger.Debug("classifier verdict received",
		zap.String("action", string(verdict.Action)),
		zap.Duration("duration", time.Since(startTime)),
	)
	return verdict, nil
}

// HealthCheck verifies the service answers GET /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.http.GetJSON(ctx, "health_check", "/health", nil)
}
