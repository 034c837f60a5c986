// Package transport provides the JSON-over-HTTP client shared by the
// downstream service clients.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// Client performs single-attempt JSON calls against one base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client whose every call is bounded by timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON sends in as the request body and decodes a 2xx response into out.
func (c *Client) PostJSON(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return domain.WrapError(op, fmt.Errorf("marshal request: %w", err), domain.KindValidation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.WrapError(op, err, domain.KindTransport)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, op, req, out)
}

// GetJSON decodes a 2xx response of a GET request into out.
func (c *Client) GetJSON(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.WrapError(op, err, domain.KindTransport)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(ctx, op, req, out)
}

func (c *Client) do(ctx context.Context, op string, req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return domain.WrapError(op, domain.ErrServiceTimeout, domain.KindTimeout)
		}
		return domain.WrapError(op, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err), domain.KindTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.WrapError(op,
			fmt.Errorf("%w: status %d: %s", domain.ErrServiceUnavailable, resp.StatusCode, bytes.TrimSpace(snippet)),
			domain.KindTransport)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(ctx, err) {
			return domain.WrapError(op, domain.ErrServiceTimeout, domain.KindTimeout)
		}
		return domain.WrapError(op, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err), domain.KindValidation)
	}

	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
