// Package ws carries real-time events over WebSocket connections.
package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
	"my-chat-backend/errors"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// Conn is one socket of a user. Send only enqueues: a single writer
// goroutine owns the socket writes.
type Conn struct {
	id           domain.ConnectionID
	userID       domain.UserID
	socket       *websocket.Conn
	log          *slog.Logger
	out          chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingInterval time.Duration
}

func NewConn(socket *websocket.Conn, userID domain.UserID, log *slog.Logger,
	bufferSize int, writeTimeout, pingInterval time.Duration) *Conn {
	id := domain.NewConnectionID()
	return &Conn{
		id:           id,
		userID:       userID,
		socket:       socket,
		log:          log.With("connection_id", id, "user_id", userID),
		out:          make(chan []byte, max(bufferSize, 1)),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

func (c *Conn) ID() domain.ConnectionID { return c.id }
func (c *Conn) UserID() domain.UserID   { return c.userID }

func (c *Conn) QueueUsage() (length, capacity int) {
	return len(c.out), cap(c.out)
}

// Send enqueues the encoded event. It never blocks: a closed connection
// returns ErrConnectionClosed and a full queue ErrBackpressure.
func (c *Conn) Send(_ context.Context, evt event.Event) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	data, err := evt.Encode()
	if err != nil {
		return err
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
		return errors.ErrBackpressure
	}
}

// Close is idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		err = c.socket.Close()
	})
	return err
}

// WriteLoop drains the queue and pings the peer until the connection closes.
func (c *Conn) WriteLoop() {
	var ping <-chan time.Time
	if c.pingInterval > 0 {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			_ = c.socket.SetWriteDeadline(c.deadline())
			if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Write failed, closing connection", "error", err)
				_ = c.Close()
				return
			}
		case <-ping:
			if err := c.socket.WriteControl(websocket.PingMessage, nil, c.deadline()); err != nil {
				c.log.Debug("Ping failed, closing connection", "error", err)
				_ = c.Close()
				return
			}
		}
	}
}

// ReadLoop hands every text frame to onFrame until the peer goes away,
// then closes the connection.
func (c *Conn) ReadLoop(readLimit int64, onFrame func([]byte)) {
	defer func() { _ = c.Close() }()

	c.socket.SetReadLimit(readLimit)
	if c.pingInterval > 0 {
		pongWait := 2 * c.pingInterval
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		c.socket.SetPongHandler(func(string) error {
			return c.socket.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		kind, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Unexpected close", "error", err)
			}
			return
		}
		if kind == websocket.TextMessage && len(data) > 0 {
			onFrame(data)
		}
	}
}

func (c *Conn) deadline() time.Time {
	if c.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.writeTimeout)
}
