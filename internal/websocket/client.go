package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/metrics"
	"realtime-chat/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	defaultSendQueue      = 256
	defaultMaxMessageSize = 8192
)

// Client is one live websocket. It is the broadcast subscriber of the topic
// its session joined; all data frames go through the send queue so the write
// pump is the only writer.
type Client struct {
	id      string
	channel string
	conn    *websocket.Conn
	send    chan []byte
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	closed     atomic.Bool
	closeOnce  sync.Once
	writerDone chan struct{}
}

func newClient(conn *websocket.Conn, channel string, queue int, logger *slog.Logger) *Client {
	if queue <= 0 {
		queue = defaultSendQueue
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Client{
		id:         id,
		channel:    channel,
		conn:       conn,
		send:       make(chan []byte, queue),
		logger:     logger.With("clientID", id),
		ctx:        ctx,
		cancel:     cancel,
		writerDone: make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Context is cancelled when the client closes.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Deliver implements broadcast.Subscriber. It never blocks; a client whose
// queue is full is closed instead of slowing the publisher down.
func (c *Client) Deliver(e broadcast.Event) {
	c.enqueue(e.Data)
}

func (c *Client) enqueue(data []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		metrics.DroppedFrames.WithLabelValues("send_buffer_full").Inc()
		c.logger.Warn("Send buffer full, closing client")
		go c.Close(websocket.CloseTryAgainLater, "send buffer full")
		return false
	}
}

// SendFrame encodes v and queues it for this client only.
func (c *Client) SendFrame(v interface{}) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if !c.enqueue(data) {
		return errClientClosed
	}
	return nil
}

func (c *Client) sendError(code int, message string) {
	_ = c.SendFrame(protocol.NewErrorFrame(code, message))
}

// Close sends a close frame with code and tears the connection down. Safe to
// call from any goroutine and more than once.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		if msg := closeFrame(code, reason); msg != nil {
			if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("Error sending close frame", "error", err)
			}
		}
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("Error closing connection", "error", err)
		}
	})
}

// drop tears the connection down without a close frame, for when the
// transport already failed.
func (c *Client) drop() {
	c.Close(websocket.CloseAbnormalClosure, "")
}

// closeFrame is nil for codes that must never be sent on the wire.
func closeFrame(code int, reason string) []byte {
	switch code {
	case websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure, websocket.CloseTLSHandshake:
		return nil
	}
	return websocket.FormatCloseMessage(code, reason)
}

// wait blocks until the write pump has exited.
func (c *Client) wait() {
	<-c.writerDone
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writerDone)
		c.logger.Debug("WritePump finished")
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Error writing message", "error", err)
				go c.drop()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Error sending ping", "error", err)
				go c.drop()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump calls handle for each text frame until the peer goes away or
// handle returns an error. It returns that error, or nil on a normal close.
func (c *Client) readPump(maxMessageSize int64, handle func([]byte) error) error {
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && !c.closed.Load() {
				c.logger.Warn("WebSocket error", "error", err)
			} else {
				c.logger.Debug("WebSocket connection closed", "error", err)
			}
			return nil
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := handle(data); err != nil {
			return err
		}
	}
}
