// Package ws fans pipeline events out to websocket observers, replaying a
// bounded history to each new connection.
package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/metrics"
	"go.uber.org/zap"
)

// ErrObserverClosed is returned by Send once an observer can no longer
// accept events.
var ErrObserverClosed = errors.New("observer closed")

// Observer receives events from the hub. Send must not block; an observer
// that cannot keep up returns an error and is dropped.
type Observer interface {
	ID() string
	Send(ev domain.Event) error
	Close()
}

// Hub holds the event history and the live observer set. One mutex guards
// both, so connects, disconnects and emits are totally ordered.
type Hub struct {
	mu        sync.Mutex
	observers map[Observer]struct{}
	history   *ring
	logger    *zap.Logger
}

// NewHub creates a hub that keeps the last bufferSize events.
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	return &Hub{
		observers: make(map[Observer]struct{}),
		history:   newRing(bufferSize),
		logger:    logger.Named("hub"),
	}
}

// Connect registers the observer and replays the buffered history to it
// before any later emit can reach it. It reports false if the replay
// failed, in which case the observer has already been dropped.
func (h *Hub) Connect(o Observer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.observers[o] = struct{}{}

	var err error
	h.history.each(func(ev domain.Event) {
		if err == nil {
			err = o.Send(ev)
		}
	})
	if err != nil {
		h.logger.Warn("replay failed, dropping observer",
			zap.String("observer", o.ID()), zap.Error(err))
		h.removeLocked(o)
		return false
	}

	metrics.SetObservers(len(h.observers))
	h.logger.Debug("observer connected",
		zap.String("observer", o.ID()),
		zap.Int("replayed", h.history.len()),
	)
	return true
}

// Disconnect removes the observer. Unknown observers are ignored.
func (h *Hub) Disconnect(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removeLocked(o) {
		h.logger.Debug("observer disconnected", zap.String("observer", o.ID()))
	}
}

// Emit records the event in the history and sends it to every observer.
// A zero timestamp is set to the current time.
func (h *Hub) Emit(ev domain.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.history.push(ev)
	metrics.IncEvents()

	var dead []Observer
	for o := range h.observers {
		if err := o.Send(ev); err != nil {
			dead = append(dead, o)
		}
	}
	for _, o := range dead {
		h.logger.Warn("dropping unresponsive observer", zap.String("observer", o.ID()))
		h.removeLocked(o)
	}
}

// Publish builds and emits an event of the given type.
func (h *Hub) Publish(eventType string, data any) {
	h.Emit(domain.Event{Type: eventType, Data: data})
}

// History returns the buffered events, oldest first.
func (h *Hub) History() []domain.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.history.snapshot()
}

// ObserverCount returns the number of live observers.
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Capacity returns the maximum number of buffered events.
func (h *Hub) Capacity() int {
	return h.history.capacity()
}

func (h *Hub) removeLocked(o Observer) bool {
	if _, ok := h.observers[o]; !ok {
		return false
	}
	delete(h.observers, o)
	o.Close()
	metrics.SetObservers(len(h.observers))
	return true
}
