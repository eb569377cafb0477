package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/whisprapp/whispr/internal/model"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client represents a single authenticated WebSocket connection bound to a
// user id.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	UserID uuid.UUID
}

// NewClient creates a connection handle for a verified user.
func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, logger *zap.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
		UserID: userID,
	}
}

// ActionHandler processes one inbound client action. It must handle its own
// failures via error acks; returning is the only way it ends.
type ActionHandler func(client *Client, action model.ClientAction)

// SendEvent queues an outbound event on this connection only. Used for
// per-action error acknowledgements.
func (c *Client) SendEvent(event model.ServerEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend is a non-blocking push; the event is dropped when the connection's
// buffer is full.
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// ReadPump pumps actions from the WebSocket connection into the handler.
// Runs in a per-client goroutine. A malformed frame produces an error ack,
// never a session close.
func (c *Client) ReadPump(handler ActionHandler) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			break
		}

		var action model.ClientAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.SendEvent(model.ServerEvent{
				Event:   model.EventError,
				Payload: model.ErrorAck{Error: "malformed action"},
			})
			continue
		}

		if handler != nil {
			handler(c, action)
		}
	}
}

// WritePump pumps queued events to the WebSocket connection and keeps the
// connection alive with pings. Runs in a per-client goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush any queued events into the current frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
