package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// WSClient manages the WebSocket connection to the signal-sync server.
type WSClient struct {
	url   string
	token string

	mu      sync.Mutex
	writeMu sync.Mutex // serialises conn writes (ping, close)
	conn    *websocket.Conn
	seq     uint64
	pingCtx context.CancelFunc // cancels the active ping goroutine
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url, token string) *WSClient {
	return &WSClient{url: url, token: token}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSSignalMsg delivers one state update.
type WSSignalMsg struct {
	Name    string
	Seq     uint64
	Payload json.RawMessage
}

// Count decodes the payload as a counter state.
func (m WSSignalMsg) Count() (Count, error) {
	var c Count
	err := json.Unmarshal(m.Payload, &c)
	return c, err
}

// Listen returns a Bubble Tea command that connects, retrying with backoff
// until it succeeds or ctx is cancelled.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			if ctx.Err() != nil {
				return nil
			}

			if err := c.Connect(ctx); err != nil {
				log.Printf("ws dial error: %v (retry in %v)", err, delay)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				delay = min(delay*2, reconnectMaxDelay)
				continue
			}
			return WSConnectedMsg{}
		}
	}
}

// Connect dials once and makes the connection current.
func (c *WSClient) Connect(ctx context.Context) error {
	var header http.Header
	if c.token != "" {
		header = http.Header{"Authorization": {"Bearer " + c.token}}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}

	// Cancel any previous ping goroutine.
	c.mu.Lock()
	if c.pingCtx != nil {
		c.pingCtx()
	}
	pingCtx, pingCancel := context.WithCancel(ctx)
	c.conn = conn
	c.seq = 0
	c.pingCtx = pingCancel
	c.mu.Unlock()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	go c.pingLoop(pingCtx, conn)
	return nil
}

// ReadLoop returns a Bubble Tea command that reads the next state message.
// It should be started after receiving WSConnectedMsg and re-issued after
// each WSSignalMsg.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := c.Next()
		if err != nil {
			return WSDisconnectedMsg{Err: err}
		}
		return msg
	}
}

// Next blocks until the next state message arrives.
func (c *WSClient) Next() (WSSignalMsg, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return WSSignalMsg{}, fmt.Errorf("no connection")
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn)
			return WSSignalMsg{}, err
		}
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		msg, ok := decodeMessage(data)
		if !ok {
			continue
		}

		c.mu.Lock()
		if msg.Seq != 0 {
			c.seq = msg.Seq
		} else {
			c.seq++
		}
		msg.Seq = c.seq
		c.mu.Unlock()

		return msg, nil
	}
}

// decodeMessage accepts both the enveloped and the bare state encodings.
func decodeMessage(data []byte) (WSSignalMsg, bool) {
	var env WSMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return WSSignalMsg{}, false
	}
	if env.Type == MsgSignal {
		return WSSignalMsg{Name: env.Name, Seq: env.Seq, Payload: env.Payload}, true
	}
	if env.Type != "" || !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return WSSignalMsg{}, false
	}
	return WSSignalMsg{Payload: json.RawMessage(data)}, true
}

func (c *WSClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.pingCtx != nil {
			c.pingCtx()
			c.pingCtx = nil
		}
	}
	c.mu.Unlock()
	conn.Close()
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection changes.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close sends a normal close frame and drops the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.drop(conn)
	return err
}

// Seq returns the last seen sequence number.
func (c *WSClient) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
