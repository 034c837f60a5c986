package telemetry

import (
	"context"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sink consumes collected snapshots.
type Sink interface {
	Ingest(ctx context.Context, snap domain.TelemetrySnapshot) error
}

// Collect fetches metrics, logs and traces concurrently into one snapshot.
func Collect(ctx context.Context, conn Connector, q Query, host string) (domain.TelemetrySnapshot, error) {
	var (
		metrics map[string]any
		logs    domain.Logs
		traces  []Trace
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		metrics, err = conn.Metrics(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		logs, err = conn.Logs(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		traces, err = conn.Traces(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.TelemetrySnapshot{}, err
	}

	return domain.TelemetrySnapshot{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Host:      host,
		Metrics:   metrics,
		Logs:      logs,
		Traces:    traces,
	}, nil
}

// Poller collects a snapshot on every tick and hands it to the sink.
type Poller struct {
	conn     Connector
	sink     Sink
	query    Query
	host     string
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller creates a poller. The query window defaults to the interval.
func NewPoller(conn Connector, sink Sink, q Query, host string, interval time.Duration, logger *zap.Logger) *Poller {
	if q.Window == 0 {
		q.Window = interval
	}
	return &Poller{
		conn:     conn,
		sink:     sink,
		query:    q,
		host:     host,
		interval: interval,
		logger:   logger.Named("poller"),
	}
}

// Run polls until ctx ends. Collection and ingest errors are logged and the
// loop continues.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.conn.Connect(ctx); err != nil {
		p.logger.Warn("telemetry backend not reachable yet", zap.String("connector", p.conn.Name()), zap.Error(err))
	}
	defer func() {
		if err := p.conn.Disconnect(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("disconnect failed", zap.Error(err))
		}
	}()

	p.logger.Info("telemetry poller started",
		zap.String("connector", p.conn.Name()),
		zap.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Poll(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("telemetry poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one collection cycle.
func (p *Poller) Poll(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	snap, err := Collect(cctx, p.conn, p.query, p.host)
	if err != nil {
		p.logger.Warn("telemetry collection failed", zap.Error(err))
		return
	}
	if err := p.sink.Ingest(ctx, snap); err != nil {
		p.logger.Warn("snapshot ingest failed", zap.Error(err))
	}
}
