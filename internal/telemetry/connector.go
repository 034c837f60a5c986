// Package telemetry collects snapshots from monitoring backends.
package telemetry

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/transport"
)

// Query selects what a connector fetches.
type Query struct {
	Services []string
	Window   time.Duration
	Level    string
}

// Trace is one distributed trace as the backend reports it.
type Trace = domain.Trace

// Endpoints are the JSON URLs an HTTPConnector reads. An empty URL disables
// that capability.
type Endpoints struct {
	Metrics string
	Logs    string
	Traces  string
}

// Connector is a telemetry backend. A backend without a capability returns
// an empty result for it, not an error.
type Connector interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Metrics(ctx context.Context, q Query) (map[string]any, error)
	Logs(ctx context.Context, q Query) (domain.Logs, error)
	Traces(ctx context.Context, q Query) ([]Trace, error)
}

// HTTPConnector reads metrics, logs and traces from JSON endpoints.
type HTTPConnector struct {
	name      string
	metrics   *transport.Client
	logs      *transport.Client
	traces    *transport.Client
	connected atomic.Bool
}

// NewHTTPConnector creates a connector over the given endpoints.
func NewHTTPConnector(name string, endpoints Endpoints, timeout time.Duration) *HTTPConnector {
	c := &HTTPConnector{name: name}
	if endpoints.Metrics != "" {
		c.metrics = transport.New(endpoints.Metrics, timeout)
	}
	if endpoints.Logs != "" {
		c.logs = transport.New(endpoints.Logs, timeout)
	}
	if endpoints.Traces != "" {
		c.traces = transport.New(endpoints.Traces, timeout)
	}
	return c
}

// Name implements Connector.
func (c *HTTPConnector) Name() string { return c.name }

// Connect checks that the metrics endpoint answers.
func (c *HTTPConnector) Connect(ctx context.Context) error {
	if c.metrics != nil {
		var probe map[string]any
		if err := c.metrics.GetJSON(ctx, "connect_"+c.name, "", &probe); err != nil {
			return err
		}
	}
	c.connected.Store(true)
	return nil
}

// Disconnect implements Connector.
func (c *HTTPConnector) Disconnect(context.Context) error {
	c.connected.Store(false)
	return nil
}

// Connected reports whether Connect succeeded since the last Disconnect.
func (c *HTTPConnector) Connected() bool {
	return c.connected.Load()
}

// Metrics implements Connector.
func (c *HTTPConnector) Metrics(ctx context.Context, q Query) (map[string]any, error) {
	if c.metrics == nil {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := c.metrics.GetJSON(ctx, "fetch_metrics", queryString(c.metrics.BaseURL(), q), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Logs implements Connector.
func (c *HTTPConnector) Logs(ctx context.Context, q Query) (domain.Logs, error) {
	if c.logs == nil {
		return nil, nil
	}
	var out domain.Logs
	if err := c.logs.GetJSON(ctx, "fetch_logs", queryString(c.logs.BaseURL(), q), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Traces implements Connector.
func (c *HTTPConnector) Traces(ctx context.Context, q Query) ([]Trace, error) {
	if c.traces == nil {
		return nil, nil
	}
	var out []Trace
	if err := c.traces.GetJSON(ctx, "fetch_traces", queryString(c.traces.BaseURL(), q), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func queryString(base string, q Query) string {
	v := url.Values{}
	if len(q.Services) > 0 {
		v.Set("services", strings.Join(q.Services, ","))
	}
	if q.Window > 0 {
		v.Set("window", q.Window.String())
	}
	if q.Level != "" {
		v.Set("level", q.Level)
	}
	if len(v) == 0 {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return sep + v.Encode()
}
