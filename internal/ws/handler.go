package ws

import (
	"context"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler upgrades GET /ws to a websocket and attaches it to the hub.
type Handler struct {
	hub         *Hub
	clientQueue int
	logger      *zap.Logger
}

// NewHandler creates a handler. Each client queue holds the full replay
// history plus clientBuffer live events.
func NewHandler(hub *Hub, clientBuffer int, logger *zap.Logger) *Handler {
	return &Handler{
		hub:         hub,
		clientQueue: hub.Capacity() + clientBuffer,
		logger:      logger.Named("ws"),
	}
}

// Handle serves one observer connection until it disconnects.
func (h *Handler) Handle(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.NewString(), conn, h.clientQueue, h.logger)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	if !h.hub.Connect(client) {
		cancel()
		<-done
		conn.Close(websocket.StatusTryAgainLater, "replay failed")
		return
	}

	h.logger.Info("observer connected",
		zap.String("observer", client.ID()),
		zap.String("remote_addr", c.Request.RemoteAddr),
	)

	// readPump blocks until the peer goes away.
	client.readPump(ctx)

	h.hub.Disconnect(client)
	cancel()
	<-done
	conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("observer disconnected", zap.String("observer", client.ID()))
}
