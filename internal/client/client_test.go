package client

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/signal-sync/signal-sync/internal/config"
	"github.com/signal-sync/signal-sync/internal/health"
	"github.com/signal-sync/signal-sync/internal/session"
	"github.com/signal-sync/signal-sync/internal/ws"
)

func startServer(t *testing.T, configure func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Sync.Interval = 2 * time.Millisecond
	if configure != nil {
		configure(cfg)
	}
	reporter, err := health.NewReporter()
	if err != nil {
		t.Fatal(err)
	}
	srv := ws.NewServer(cfg, session.NewStore(0), nil, reporter, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		ts.Close()
	})
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestWSClient_ReceivesCounter(t *testing.T) {
	ts := startServer(t, nil)
	c := NewWSClient(wsURL(ts), "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if msg := c.Listen(ctx)(); msg != (WSConnectedMsg{}) {
		t.Fatalf("Listen returned %#v, want WSConnectedMsg", msg)
	}
	defer c.Close()

	for i := 1; i <= 3; i++ {
		msg, ok := c.ReadLoop(ctx)().(WSSignalMsg)
		if !ok {
			t.Fatalf("ReadLoop did not return a WSSignalMsg")
		}
		count, err := msg.Count()
		if err != nil {
			t.Fatal(err)
		}
		if msg.Name != "count" || msg.Seq != uint64(i) || count.Value != int64(i) {
			t.Errorf("message %d = %s #%d value %d", i, msg.Name, msg.Seq, count.Value)
		}
	}
	if c.Seq() != 3 {
		t.Errorf("Seq() = %d, want 3", c.Seq())
	}
}

func TestWSClient_BarePayload(t *testing.T) {
	ts := startServer(t, func(c *config.Config) { c.Sync.Envelope = false })
	c := NewWSClient(wsURL(ts), "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	msg, err := c.Next()
	if err != nil {
		t.Fatal(err)
	}
	count, err := msg.Count()
	if err != nil || count.Value != 1 || msg.Seq != 1 {
		t.Errorf("first bare message = %+v (count %d, err %v)", msg, count.Value, err)
	}
}

func TestWSClient_Token(t *testing.T) {
	ts := startServer(t, func(c *config.Config) { c.Server.AuthToken = "tok" })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := NewWSClient(wsURL(ts), "").Connect(ctx); err == nil {
		t.Error("connect without token should fail")
	}

	c := NewWSClient(wsURL(ts), "tok")
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect with token: %v", err)
	}
	c.Close()
}

func TestWSClient_DisconnectMsg(t *testing.T) {
	ts := startServer(t, nil)
	c := NewWSClient(wsURL(ts), "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	c.Close()

	if _, ok := c.ReadLoop(ctx)().(WSDisconnectedMsg); !ok {
		t.Error("ReadLoop after Close should report WSDisconnectedMsg")
	}
}

func TestListen_CancelledContext(t *testing.T) {
	c := NewWSClient("ws://127.0.0.1:1/ws", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if msg := c.Listen(ctx)(); msg != nil {
		t.Errorf("Listen on cancelled ctx = %#v, want nil", msg)
	}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		ok      bool
		seq     uint64
		sigName string
	}{
		{"envelope", `{"type":"signal","name":"count","seq":4,"payload":{"value":4}}`, true, 4, "count"},
		{"bare", `{"value":9}`, true, 0, ""},
		{"other type", `{"type":"error","payload":{}}`, false, 0, ""},
		{"array", `[1,2]`, false, 0, ""},
		{"garbage", `nope`, false, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := decodeMessage([]byte(tt.data))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (msg.Seq != tt.seq || msg.Name != tt.sigName) {
				t.Errorf("msg = %+v", msg)
			}
		})
	}
}

func TestHTTPClient(t *testing.T) {
	ts := startServer(t, nil)
	c := NewWSClient(wsURL(ts), "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Next(); err != nil {
		t.Fatal(err)
	}

	h := NewHTTPClient(ts.URL, "")
	sessions, err := h.Sessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].Name != "count" {
		t.Errorf("sessions = %+v", sessions)
	}

	rep, err := h.Health(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d, want 1", rep.ActiveSessions)
	}
}
