package ws

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeObserver struct {
	id     string
	mu     sync.Mutex
	events []domain.Event
	failAt int // fail the nth send (1-based), 0 never
	closed bool
}

func (f *fakeObserver) ID() string { return f.id }

func (f *fakeObserver) Send(ev domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && len(f.events)+1 == f.failAt {
		return fmt.Errorf("send failed")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeObserver) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeObserver) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

func eventNames(from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("e%d", i))
	}
	return out
}

func TestRing_KeepsLastN(t *testing.T) {
	const capacity, extra = 5, 3
	r := newRing(capacity)
	for i := 1; i <= capacity+extra; i++ {
		r.push(domain.Event{Type: fmt.Sprintf("e%d", i)})
	}

	require.Equal(t, capacity, r.len())
	var got []string
	for _, ev := range r.snapshot() {
		got = append(got, ev.Type)
	}
	assert.Equal(t, eventNames(extra+1, capacity+extra), got)
}

func TestRing_PartiallyFilled(t *testing.T) {
	r := newRing(4)
	r.push(domain.Event{Type: "e1"})
	r.push(domain.Event{Type: "e2"})

	snap := r.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "e1", snap[0].Type)
	assert.Equal(t, "e2", snap[1].Type)
}

func TestHub_ReplayThenLive(t *testing.T) {
	hub := NewHub(10, zap.NewNop())
	for i := 1; i <= 3; i++ {
		hub.Publish(fmt.Sprintf("e%d", i), nil)
	}

	obs := &fakeObserver{id: "late"}
	require.True(t, hub.Connect(obs))
	hub.Publish("e4", nil)

	assert.Equal(t, eventNames(1, 4), obs.types())
}

func TestHub_HistoryBounded(t *testing.T) {
	hub := NewHub(3, zap.NewNop())
	for i := 1; i <= 7; i++ {
		hub.Publish(fmt.Sprintf("e%d", i), nil)
	}

	obs := &fakeObserver{id: "o"}
	hub.Connect(obs)
	assert.Equal(t, eventNames(5, 7), obs.types())
	assert.Len(t, hub.History(), 3)
}

func TestHub_EmitSetsTimestamp(t *testing.T) {
	hub := NewHub(2, zap.NewNop())
	hub.Emit(domain.Event{Type: "x"})
	assert.False(t, hub.History()[0].Timestamp.IsZero())
}

func TestHub_DropsFailingObserver(t *testing.T) {
	hub := NewHub(10, zap.NewNop())
	good := &fakeObserver{id: "good"}
	bad := &fakeObserver{id: "bad", failAt: 2}
	hub.Connect(good)
	hub.Connect(bad)

	hub.Publish("e1", nil)
	hub.Publish("e2", nil)
	hub.Publish("e3", nil)

	assert.Equal(t, 1, hub.ObserverCount())
	assert.True(t, bad.closed)
	assert.Equal(t, []string{"e1"}, bad.types())
	assert.Equal(t, eventNames(1, 3), good.types())
}

func TestHub_ReplayFailureDropsObserver(t *testing.T) {
	hub := NewHub(10, zap.NewNop())
	hub.Publish("e1", nil)
	hub.Publish("e2", nil)

	obs := &fakeObserver{id: "o", failAt: 2}
	assert.False(t, hub.Connect(obs))
	assert.Equal(t, 0, hub.ObserverCount())
	assert.True(t, obs.closed)
}

func TestHub_Disconnect(t *testing.T) {
	hub := NewHub(10, zap.NewNop())
	obs := &fakeObserver{id: "o"}
	hub.Connect(obs)
	hub.Disconnect(obs)
	hub.Disconnect(obs)

	hub.Publish("e1", nil)
	assert.Empty(t, obs.types())
	assert.Equal(t, 0, hub.ObserverCount())
}

// Every observer that connects while emits are in flight must see a
// gap-free, duplicate-free sequence.
func TestHub_ConcurrentConnectNoGapsOrDuplicates(t *testing.T) {
	const total = 200
	hub := NewHub(total, zap.NewNop())

	observers := make([]*fakeObserver, 20)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= total; i++ {
			hub.Publish(fmt.Sprintf("e%d", i), nil)
		}
	}()
	for i := range observers {
		observers[i] = &fakeObserver{id: fmt.Sprintf("o%d", i)}
		wg.Add(1)
		go func(o *fakeObserver) {
			defer wg.Done()
			hub.Connect(o)
		}(observers[i])
	}
	wg.Wait()

	for _, o := range observers {
		assert.Equal(t, eventNames(1, total), o.types(), o.id)
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	c := NewClient("c", nil, 1, zap.NewNop())
	require.NoError(t, c.Send(domain.Event{Type: "a"}))
	assert.Error(t, c.Send(domain.Event{Type: "b"}), "queue full")

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Send(domain.Event{Type: "c"}), ErrObserverClosed)
}

func TestHandler_StreamsReplayAndLive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(10, zap.NewNop())
	hub.Publish("incident.created", map[string]any{"incident_id": "a"})
	hub.Publish("incident.resolved", map[string]any{"incident_id": "a"})

	router := gin.New()
	router.GET("/ws", NewHandler(hub, 4, zap.NewNop()).Handle)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, srv.URL+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.ObserverCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Publish("log", map[string]any{"message": "hello"})

	var got []string
	for i := 0; i < 3; i++ {
		var ev domain.Event
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		got = append(got, ev.Type)
	}
	assert.Equal(t, []string{"incident.created", "incident.resolved", "log"}, got)
}
