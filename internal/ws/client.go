package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Client is a websocket observer. Events are queued on a buffered channel
// and written by writePump.
type Client struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	mu     sync.Mutex
	send   chan domain.Event
	closed bool
}

// NewClient creates an observer for conn with room for queue pending events.
func NewClient(id string, conn *websocket.Conn, queue int, logger *zap.Logger) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan domain.Event, queue),
		logger: logger,
	}
}

// ID implements Observer.
func (c *Client) ID() string { return c.id }

// Send implements Observer. It fails instead of blocking when the queue is full.
func (c *Client) Send(ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrObserverClosed
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return fmt.Errorf("observer %s: send queue full", c.id)
	}
}

// Close implements Observer. It stops writePump after the queue drains.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump writes queued events to the websocket until the queue is
// closed, the context ends or a write fails.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.send:
			if !ok {
				// Dropped by the hub; unblock readPump.
				c.conn.Close(websocket.StatusPolicyViolation, "observer dropped")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, ev)
			cancel()
			if err != nil {
				c.logger.Debug("websocket write error", zap.String("observer", c.id), zap.Error(err))
				return
			}
		}
	}
}

// readPump drains inbound frames to detect disconnects. Observers do not
// send anything meaningful.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
