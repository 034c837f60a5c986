package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticConnector struct {
	name    string
	metrics map[string]any
	logs    domain.Logs
	traces  []Trace
	err     error
}

func (s *staticConnector) Name() string { return s.name }
func (s *staticConnector) Connect(context.Context) error { return s.err }
func (s *staticConnector) Disconnect(context.Context) error { return nil }
func (s *staticConnector) Metrics(context.Context, Query) (map[string]any, error) {
	return s.metrics, s.err
}
func (s *staticConnector) Logs(context.Context, Query) (domain.Logs, error) { return s.logs, s.err }
func (s *staticConnector) Traces(context.Context, Query) ([]Trace, error) { return s.traces, s.err }

type captureSink struct {
	mu    sync.Mutex
	snaps []domain.TelemetrySnapshot
}

func (c *captureSink) Ingest(_ context.Context, snap domain.TelemetrySnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, snap)
	return nil
}

func TestHTTPConnector(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/metrics":
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`{"cpu":{"cpu_percent":91.5}}`))
		case "/logs":
			w.Write([]byte(`[{"level":"ERROR","message":"disk full","source":"db"}]`))
		case "/traces":
			w.Write([]byte(`[{"trace_id":"abc","service":"db"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	conn := NewHTTPConnector("http", Endpoints{
		Metrics: srv.URL + "/metrics",
		Logs:    srv.URL + "/logs",
		Traces:  srv.URL + "/traces",
	}, time.Second)
	ctx := context.Background()

	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.Connected())

	q := Query{Services: []string{"api", "db"}, Window: 30 * time.Second}
	metrics, err := conn.Metrics(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cpu_percent": 91.5}, metrics["cpu"])
	assert.Equal(t, "services=api%2Cdb&window=30s", gotQuery)

	logs, err := conn.Logs(ctx, q)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "db", logs[0].Source)

	traces, err := conn.Traces(ctx, q)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "abc", traces[0]["trace_id"])

	require.NoError(t, conn.Disconnect(ctx))
	assert.False(t, conn.Connected())
}

func TestHTTPConnector_MissingCapability(t *testing.T) {
	conn := NewHTTPConnector("none", Endpoints{}, time.Second)

	metrics, err := conn.Metrics(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, metrics)

	logs, err := conn.Logs(context.Background(), Query{})
	require.NoError(t, err)
	assert.Nil(t, logs)

	traces, err := conn.Traces(context.Background(), Query{})
	require.NoError(t, err)
	assert.Nil(t, traces)
}

func TestHTTPConnector_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	conn := NewHTTPConnector("http", Endpoints{Metrics: srv.URL}, time.Second)
	_, err := conn.Metrics(context.Background(), Query{})
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestQueryString(t *testing.T) {
	assert.Equal(t, "", queryString("http://x", Query{}))
	assert.Equal(t, "?level=ERROR", queryString("http://x", Query{Level: "ERROR"}))
	assert.Equal(t, "&level=ERROR", queryString("http://x?token=1", Query{Level: "ERROR"}))
}

func TestComposite_Merges(t *testing.T) {
	c := NewComposite(
		&staticConnector{
			name:    "prometheus",
			metrics: map[string]any{"cpu": 10, "memory": 20},
		},
		&staticConnector{
			name:   "loki",
			logs:   domain.Logs{{Level: "ERROR", Message: "a"}},
			traces: []Trace{{"id": "t1"}},
		},
	)
	c.Add(&staticConnector{
		name:    "override",
		metrics: map[string]any{"cpu": 99},
		logs:    domain.Logs{{Level: "WARN", Message: "b"}},
	})

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))

	metrics, err := c.Metrics(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cpu": 99, "memory": 20}, metrics)

	logs, err := c.Logs(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "a", logs[0].Message)
	assert.Equal(t, "b", logs[1].Message)

	traces, err := c.Traces(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, traces, 1)
}

func TestComposite_PropagatesError(t *testing.T) {
	boom := errors.New("backend down")
	c := NewComposite(&staticConnector{name: "ok"}, &staticConnector{name: "bad", err: boom})

	_, err := c.Metrics(context.Background(), Query{})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, c.Connect(context.Background()), boom)
}

func TestPoller_Poll(t *testing.T) {
	conn := &staticConnector{
		name:    "static",
		metrics: map[string]any{"cpu": map[string]any{"cpu_percent": 50}},
		logs:    domain.Logs{{Level: "INFO"}},
	}
	sink := &captureSink{}
	p := NewPoller(conn, sink, Query{}, "node-1", time.Minute, zap.NewNop())

	p.Poll(context.Background())

	require.Len(t, sink.snaps, 1)
	assert.Equal(t, "node-1", sink.snaps[0].Host)
	assert.NotEmpty(t, sink.snaps[0].Timestamp)
	assert.Len(t, sink.snaps[0].Logs, 1)
	assert.Equal(t, time.Minute, p.query.Window)
}

func TestCollect_MergesTracesFromAddedConnector(t *testing.T) {
	source := NewComposite(&staticConnector{
		name:    "metrics",
		metrics: map[string]any{"cpu": map[string]any{"cpu_percent": 50}},
	})
	source.Add(&staticConnector{name: "tracing", traces: []Trace{{"trace_id": "t1"}, {"trace_id": "t2"}}})

	snap, err := Collect(context.Background(), source, Query{}, "node-1")
	require.NoError(t, err)
	require.Len(t, snap.Traces, 2)
	assert.Equal(t, "t1", snap.Traces[0]["trace_id"])
	assert.Contains(t, snap.Metrics, "cpu")
}

func TestPoller_SkipsFailedCollection(t *testing.T) {
	sink := &captureSink{}
	p := NewPoller(&staticConnector{name: "bad", err: errors.New("down")}, sink, Query{}, "h", time.Minute, zap.NewNop())

	p.Poll(context.Background())
	assert.Empty(t, sink.snaps)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	sink := &captureSink{}
	p := NewPoller(&staticConnector{name: "s", metrics: map[string]any{}}, sink, Query{}, "h", 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.snaps) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
