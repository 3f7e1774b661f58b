package ws

import (
	"errors"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signal-sync/signal-sync/internal/signal"
)

const (
	maxInboundMessage = 4096
	closeGrace        = 500 * time.Millisecond
)

// Conn adapts an upgraded WebSocket to signal.Sender. Data frames are written
// only by Send; a read pump drains the peer so control frames (ping, close)
// are processed and a vanished peer is noticed.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	done         chan struct{}
	closeOnce    sync.Once

	mu      sync.Mutex
	readErr error
}

func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	c := &Conn{
		ws:           ws,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	ws.SetReadLimit(maxInboundMessage)
	go c.readPump()
	return c
}

func (c *Conn) readPump() {
	defer close(c.done)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}
	}
}

func (c *Conn) peerErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Done is closed once the peer stops being readable.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// Send writes data as one text frame.
func (c *Conn) Send(data []byte) error {
	if err := c.peerErr(); err != nil {
		return signal.PeerClosed(err)
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		if c.peerErr() != nil {
			return signal.PeerClosed(err)
		}
		return classifyWriteError(err)
	}
	return nil
}

func classifyWriteError(err error) *signal.CloseError {
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr),
		errors.Is(err, websocket.ErrCloseSent),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return signal.PeerClosed(err)
	default:
		return signal.WriteFailed(err)
	}
}

// Close sends a close frame with code and reason when the peer is still
// listening, waits briefly for its reply, then releases the socket. Only the
// first call has an effect.
func (c *Conn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		if c.peerErr() == nil {
			msg := websocket.FormatCloseMessage(code, reason)
			if c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)) == nil {
				select {
				case <-c.done:
				case <-time.After(closeGrace):
				}
			}
		}
		err = c.ws.Close()
		<-c.done
	})
	return err
}

// closeCodeFor picks the close frame sent after a session ends.
func closeCodeFor(t signal.Termination) (int, string) {
	switch t.Cause {
	case signal.CauseCancelled:
		return websocket.CloseGoingAway, "server shutting down"
	case signal.CauseEncodeError:
		return websocket.CloseInternalServerErr, "encode failure"
	case signal.CauseWriteError:
		return websocket.CloseInternalServerErr, "write failure"
	default:
		return websocket.CloseNormalClosure, ""
	}
}
