package detector

import (
	"context"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/transport"
	"go.uber.org/zap"
)

// Client calls a remote detector service's POST /detect.
type Client struct {
	http   *transport.Client
	logger *zap.Logger
}

// NewClient creates a detector service client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		http:   transport.New(baseURL, timeout),
		logger: logger.Named("detector_client"),
	}
}

// Detect sends the snapshot and validates the returned result.
func (c *Client) Detect(ctx context.Context, snapshot domain.TelemetrySnapshot) (domain.DetectionResult, error) {
	var result domain.DetectionResult
	if err := c.http.PostJSON(ctx, "call_detector", "/detect", snapshot, &result); err != nil {
		c.logger.Warn("detector call failed", zap.Error(err))
		return domain.DetectionResult{}, err
	}

	if err := result.Validate(); err != nil {
		return domain.DetectionResult{}, domain.WrapError("validate_detection", err, domain.KindValidation)
	}

	return result, nil
}

// HealthCheck verifies the service answers GET /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.http.GetJSON(ctx, "health_check", "/health", nil)
}
