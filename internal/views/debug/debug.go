// Package debug provides the connection event log overlay. It records
// connects, disconnects, sequence gaps and health transitions; individual
// state frames are too frequent to log.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/signal-sync/signal-sync/internal/theme"
)

const maxEntries = 200

// Kind classifies a log entry.
type Kind string

const (
	KindConn   Kind = "conn"
	KindGap    Kind = "gap"
	KindErr    Kind = "err"
	KindHealth Kind = "hlth"
)

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Kind    Kind
	Message string
}

// Model holds debug log state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset from the bottom

	lastSeq    uint64
	lastHealth string
	now        func() time.Time
}

// New creates an empty debug model.
func New() Model {
	return Model{now: time.Now}
}

// Add appends a log entry and caps the buffer.
func (m *Model) Add(kind Kind, format string, args ...any) {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	m.Entries = append(m.Entries, Entry{
		Time:    now(),
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Connected records a new connection and resets gap tracking.
func (m *Model) Connected() {
	m.lastSeq = 0
	m.Add(KindConn, "connected")
}

// Disconnected records a dropped connection.
func (m *Model) Disconnected(err error) {
	if err != nil {
		m.Add(KindErr, "disconnected: %v", err)
		return
	}
	m.Add(KindConn, "disconnected")
}

// Seq tracks message sequence numbers and logs any gap. It reports whether
// a gap was found.
func (m *Model) Seq(seq uint64) bool {
	prev := m.lastSeq
	m.lastSeq = seq
	if prev == 0 || seq == prev+1 {
		return false
	}
	if seq <= prev {
		m.Add(KindGap, "seq went back from %d to %d", prev, seq)
	} else {
		m.Add(KindGap, "missed %d message(s) after seq %d", seq-prev-1, prev)
	}
	return true
}

// Health logs server health status transitions.
func (m *Model) Health(status string) {
	if status == m.lastHealth {
		return
	}
	if m.lastHealth != "" {
		m.Add(KindHealth, "server %s -> %s", m.lastHealth, status)
	} else {
		m.Add(KindHealth, "server %s", status)
	}
	m.lastHealth = status
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	limit := len(m.Entries) - 1
	if limit < 0 {
		limit = 0
	}
	if m.Offset > limit {
		m.Offset = limit
	}
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the event log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visibleLines := height - 6
	if visibleLines < 3 {
		visibleLines = 3
	}

	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := len(m.Entries) - m.Offset
	start := end - visibleLines
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(string(e.Kind))
		msg := e.Message
		if len(msg) > innerW-20 && innerW > 23 {
			msg = msg[:innerW-23] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, kind, msg))
	}

	scroll := ""
	if m.Offset > 0 {
		scroll = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}

	return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), scroll, help))
}

func kindColor(kind Kind) lipgloss.Color {
	switch kind {
	case KindConn:
		return theme.ColorHealthy
	case KindErr:
		return theme.ColorDanger
	case KindGap, KindHealth:
		return theme.ColorWarning
	default:
		return theme.ColorDimmed
	}
}
