package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	authWait   = 10 * time.Second
)

var errConnClosed = errors.New("gateway: connection closed")

// connState tracks the lifecycle of one socket. Transitions only move
// forward; stateClosed is terminal and a reconnect builds a new Connection.
type connState int32

const (
	stateAuthenticating connState = iota
	stateAuthenticated
	stateClosed
)

// Connection wraps one websocket. The read loop owns inbound frames and the
// write loop owns the socket's outbound side, fed exclusively through the
// bounded send channel.
type Connection struct {
	ID     string
	UserID uint // zero until authenticated

	ws     *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once

	mu    sync.Mutex
	state connState

	wmu sync.Mutex // serializes data and ping writes
}

func newConnection(ws *websocket.Conn, sendBuffer int) *Connection {
	if sendBuffer <= 0 {
		sendBuffer = 128
	}
	return &Connection{
		ID:     uuid.NewString(),
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *Connection) setState(s connState) {
	c.mu.Lock()
	if c.state != stateClosed {
		c.state = s
	}
	c.mu.Unlock()
}

func (c *Connection) authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateAuthenticated
}

// Send enqueues a frame without ever blocking the caller. When the buffer is
// full the oldest queued frame is dropped to make room; if the client still
// cannot keep up the connection is closed. Missed frames are recoverable by
// polling, a stalled room fan-out is not.
func (c *Connection) Send(frame []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer overflow")
		return errConnClosed
	}
}

// Close shuts the socket down exactly once and releases the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		c.state = stateClosed
		c.mu.Unlock()
		close(c.closed)
		if c.ws != nil {
			deadline := time.Now().Add(writeWait)
			_ = c.ws.SetWriteDeadline(deadline)
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
			_ = c.ws.Close()
		}
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case frame := <-c.send:
			if err := c.writeFrame(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}

// writeFrame may also be called directly for frames that must reach the
// client before an imminent close, ahead of anything still queued.
func (c *Connection) writeFrame(frame []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Connection) writePing() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
