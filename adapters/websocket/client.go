package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4 * 1024
	sendBuffer     = 256
)

// Frame is one transcript event ready to be written. Seq is -1 for frames
// that are not tied to a transcript position.
type Frame struct {
	Seq     int
	Payload []byte
}

// Client is one viewer of a session's transcript. The feed is read-only:
// frames sent by the peer are discarded.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	ctx       context.Context
	cancel    context.CancelFunc

	mu        sync.Mutex
	closed    bool
	replaying bool
	pending   []Frame
	next      int
}

// NewClient creates a client that buffers live frames until Replay is called.
func NewClient(ctx context.Context, conn *websocket.Conn, sessionID string) *Client {
	ctx, cancel := context.WithCancel(log.ContextWithSession(ctx, sessionID))
	return &Client{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, sendBuffer),
		ctx:       ctx,
		cancel:    cancel,
		replaying: true,
	}
}

func (c *Client) SessionID() string {
	return c.sessionID
}

func (c *Client) Run() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
}

// Deliver queues a live frame. Frames older than what the client has
// already seen are dropped.
func (c *Client) Deliver(f Frame) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return websocket.ErrCloseSent
	}
	if c.replaying {
		c.pending = append(c.pending, f)
		c.mu.Unlock()
		return nil
	}
	ok := c.enqueueLocked(f)
	c.mu.Unlock()

	if !ok {
		c.Close()
		return websocket.ErrCloseSent
	}
	return nil
}

// Replay writes the backlog, then releases the live frames buffered since
// the client was registered.
func (c *Client) Replay(backlog []Frame) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return websocket.ErrCloseSent
	}
	ok := true
	for _, f := range backlog {
		ok = ok && c.enqueueLocked(f)
	}
	for _, f := range c.pending {
		ok = ok && c.enqueueLocked(f)
	}
	c.pending = nil
	c.replaying = false
	c.mu.Unlock()

	if !ok {
		c.Close()
		return websocket.ErrCloseSent
	}
	return nil
}

// enqueueLocked reports false when the send buffer is full.
func (c *Client) enqueueLocked(f Frame) bool {
	if f.Seq >= 0 {
		if f.Seq < c.next {
			return true
		}
		c.next = f.Seq + 1
	}
	select {
	case c.send <- f.Payload:
		return true
	default:
		log.WithCtx(c.ctx).Warn("⚠️ Client send buffer full, disconnecting")
		return false
	}
}

// Close gracefully closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
}

func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}
	}
}

// writePump owns all writes to the connection and closes it on exit.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Error("Failed to send ping", zap.Error(err))
				c.Close()
				return
			}
		}
	}
}
