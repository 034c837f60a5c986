package telemetry

import (
	"context"
	"maps"

	"github.com/ai-devops/autoheal/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Composite fans a query out to several connectors and merges the results
// in connector order. Later connectors win on conflicting metric keys.
type Composite struct {
	connectors []Connector
}

// NewComposite combines connectors.
func NewComposite(connectors ...Connector) *Composite {
	return &Composite{connectors: connectors}
}

// Add appends a connector.
func (c *Composite) Add(conn Connector) {
	c.connectors = append(c.connectors, conn)
}

// Name implements Connector.
func (c *Composite) Name() string { return "composite" }

// Connect connects every connector concurrently and fails if any fails.
func (c *Composite) Connect(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, conn := range c.connectors {
		g.Go(func() error { return conn.Connect(gctx) })
	}
	return g.Wait()
}

// Disconnect disconnects every connector.
func (c *Composite) Disconnect(ctx context.Context) error {
	var g errgroup.Group
	for _, conn := range c.connectors {
		g.Go(func() error { return conn.Disconnect(ctx) })
	}
	return g.Wait()
}

// Metrics implements Connector.
func (c *Composite) Metrics(ctx context.Context, q Query) (map[string]any, error) {
	parts := make([]map[string]any, len(c.connectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range c.connectors {
		g.Go(func() error {
			m, err := conn.Metrics(gctx, q)
			parts[i] = m
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]any)
	for _, m := range parts {
		maps.Copy(out, m)
	}
	return out, nil
}

// Logs implements Connector.
func (c *Composite) Logs(ctx context.Context, q Query) (domain.Logs, error) {
	parts := make([]domain.Logs, len(c.connectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range c.connectors {
		g.Go(func() error {
			l, err := conn.Logs(gctx, q)
			parts[i] = l
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out domain.Logs
	for _, l := range parts {
		out = append(out, l...)
	}
	return out, nil
}

// Traces implements Connector.
func (c *Composite) Traces(ctx context.Context, q Query) ([]Trace, error) {
	parts := make([][]Trace, len(c.connectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range c.connectors {
		g.Go(func() error {
			t, err := conn.Traces(gctx, q)
			parts[i] = t
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Trace
	for _, t := range parts {
		out = append(out, t...)
	}
	return out, nil
}
