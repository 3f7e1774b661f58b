package app

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/signal-sync/signal-sync/internal/client"
	helpview "github.com/signal-sync/signal-sync/internal/views/help"
)

func sized() Model {
	m := New(nil, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestDisconnectOverlay(t *testing.T) {
	m := sized()
	m.statusBar.LastErr = errors.New("dial tcp: connection refused")

	v := m.View()
	for _, want := range []string{"DISCONNECTED", "Reconnecting", "connection refused"} {
		if !strings.Contains(v, want) {
			t.Errorf("disconnect overlay should contain %q", want)
		}
	}
}

func TestSignalUpdatesGauge(t *testing.T) {
	m := sized()
	m.connected = true

	next, _ := m.Update(client.WSSignalMsg{Name: "count", Seq: 42, Payload: json.RawMessage(`{"value":42}`)})
	m = next.(Model)

	if m.gauge.Value != 42 || m.gauge.Seq != 42 {
		t.Fatalf("gauge = value %d seq %d, want 42/42", m.gauge.Value, m.gauge.Seq)
	}
	if m.received != 1 {
		t.Fatalf("received = %d, want 1", m.received)
	}
	if !strings.Contains(m.View(), "42") {
		t.Error("view should show the counter value")
	}
}

func TestPauseFreezesGauge(t *testing.T) {
	m := sized()
	m.connected = true

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = next.(Model)
	if !m.paused {
		t.Fatal("p should pause")
	}

	next, _ = m.Update(client.WSSignalMsg{Name: "count", Seq: 1, Payload: json.RawMessage(`{"value":1}`)})
	m = next.(Model)
	if m.gauge.Value != 0 {
		t.Fatalf("paused gauge moved to %d", m.gauge.Value)
	}
	if m.received != 1 {
		t.Fatal("paused model should still count messages")
	}
}

func TestHelpOverlay(t *testing.T) {
	m := sized()

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	m = next.(Model)
	if m.overlay != OverlayHelp {
		t.Fatal("? should open help")
	}
	if !strings.Contains(m.View(), "signal-tui") {
		t.Error("help overlay should render the help text")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	if m.overlay != OverlayNone {
		t.Fatal("esc should close help")
	}
}

func TestHelpDocumentsEveryBinding(t *testing.T) {
	text := helpview.Render(120)
	for _, group := range DefaultKeyMap().FullHelp() {
		for _, b := range group {
			if desc := b.Help().Desc; !strings.Contains(text, desc) {
				t.Errorf("help overlay does not document %q (%v)", desc, b.Keys())
			}
		}
	}
}

func TestEventLogRecordsGaps(t *testing.T) {
	m := sized()

	next, _ := m.Update(client.WSConnectedMsg{})
	m = next.(Model)
	for _, seq := range []uint64{1, 2, 5} {
		next, _ = m.Update(client.WSSignalMsg{Name: "count", Seq: seq, Payload: json.RawMessage(`{"value":1}`)})
		m = next.(Model)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	m = next.(Model)
	if m.overlay != OverlayDebug {
		t.Fatal("d should open the event log")
	}
	v := m.View()
	if !strings.Contains(v, "connected") || !strings.Contains(v, "missed 2") {
		t.Errorf("event log should show the connection and the gap:\n%s", v)
	}
}

func TestFrameComputesRate(t *testing.T) {
	m := sized()
	start := time.Now()

	next, _ := m.Update(frameMsg(start))
	m = next.(Model)
	m.received = 100

	next, _ = m.Update(frameMsg(start.Add(time.Second)))
	m = next.(Model)
	if m.statusBar.Rate != 100 {
		t.Fatalf("Rate = %v, want 100", m.statusBar.Rate)
	}
	if m.received != 0 {
		t.Fatalf("received = %d, want reset to 0", m.received)
	}
}

func TestHealthUpdatesStatusBar(t *testing.T) {
	m := sized()
	next, cmd := m.Update(healthMsg{report: &client.HealthReport{Status: "ok", ActiveSessions: 3, RSSBytes: 1 << 20}})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("health result should schedule the next poll")
	}
	if !strings.Contains(m.View(), "3 sessions") {
		t.Error("status bar should show active sessions")
	}
}

func TestQuit(t *testing.T) {
	m := sized()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("ctrl+c should quit")
	}
	if m.ctx.Err() == nil {
		t.Fatal("quit should cancel the client context")
	}
}
