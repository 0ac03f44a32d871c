package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"brain2-extractor/domain/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames and the occasional keepalive
	maxMessageSize = 4 * 1024
)

// Message is the envelope of every frame pushed to a client
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Client streams one session's events over one connection
type Client struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	events    <-chan events.DomainEvent
	cancel    func()
	done      chan struct{}
	logger    *zap.Logger
}

// NewClient creates a client for an established subscription
func NewClient(sessionID string, conn *websocket.Conn, stream <-chan events.DomainEvent, cancel func(), logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:        id,
		sessionID: sessionID,
		conn:      conn,
		events:    stream,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger: logger.With(
			zap.String("sessionID", sessionID),
			zap.String("connectionID", id),
		),
	}
}

// Run pumps events until the session ends or the peer goes away. It blocks
// until both pumps have stopped.
func (c *Client) Run() {
	go c.readPump()
	c.writePump()
	<-c.done
}

// readPump only tracks liveness; the stream is one-way
func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.cancel()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if err := c.write(Message{Type: "connection.established", SessionID: c.sessionID, Timestamp: time.Now().Unix()}); err != nil {
		return
	}

	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				// Session finished or this subscriber fell behind
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"))
				return
			}

			if err := c.write(Message{
				Type:      event.GetEventType(),
				SessionID: event.GetAggregateID(),
				Timestamp: event.GetTimestamp().UnixMilli(),
				Data:      event,
			}); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to send ping", zap.Error(err))
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) write(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.String("type", msg.Type), zap.Error(err))
		return nil
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Debug("Failed to write message", zap.Error(err))
		return err
	}
	return nil
}
