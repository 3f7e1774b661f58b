// Package gauge renders the synchronized counter as a large number and a
// lap bar whose fill is animated with a harmonica spring.
package gauge

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/signal-sync/signal-sync/internal/client"
	"github.com/signal-sync/signal-sync/internal/theme"
)

// FPS is the animation frame rate driven by the app's frame tick.
const FPS = 60

// DefaultLap is the number of increments that fill the bar once.
const DefaultLap = 1000

// Model holds the gauge state. Value is the last value received; the bar
// fill springs toward the fraction of the current lap.
type Model struct {
	Name  string
	Value int64
	Seq   uint64
	Lap   int64
	Width int

	spring harmonica.Spring
	pos    float64
	vel    float64
}

// New creates a gauge with a slightly under-damped spring.
func New() Model {
	return Model{
		Lap:    DefaultLap,
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 8.0, 0.8),
	}
}

// Set records a new value from the server.
func (m *Model) Set(name string, seq uint64, value int64) {
	m.Name = name
	m.Seq = seq
	m.Value = value
}

// Target is the fill fraction the bar is animating toward.
func (m Model) Target() float64 {
	lap := m.Lap
	if lap <= 0 {
		lap = DefaultLap
	}
	r := m.Value % lap
	if r < 0 {
		r += lap
	}
	return float64(r) / float64(lap)
}

// Position is the current animated fill fraction.
func (m Model) Position() float64 { return m.pos }

// Step advances the spring by one frame.
func (m *Model) Step() {
	target := m.Target()
	// A lap wrap snaps back rather than animating the bar backwards.
	if target < m.pos-0.5 {
		m.pos, m.vel = target, 0
		return
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, target)
}

// View renders the gauge.
func (m Model) View() string {
	width := m.Width - 4
	if width < 20 {
		width = 20
	}

	name := m.Name
	if name == "" {
		name = "state"
	}
	header := theme.StyleHeader.Render(name) +
		theme.StyleDimmed.Render(fmt.Sprintf("  seq %s", humanize.Comma(int64(m.Seq))))
	value := theme.StyleValue.Render(humanize.Comma(m.Value))

	return theme.StyleBorder.
		Width(width).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			header,
			"",
			value,
			"",
			bar(m.pos, width-2),
		))
}

func bar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	filled := int(pct*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	fill := lipgloss.NewStyle().Foreground(theme.GaugeColor(pct)).Render(strings.Repeat("█", filled))
	empty := theme.StyleDimmed.Render(strings.Repeat("░", width-filled))
	return fill + empty
}

// FromSignal extracts the counter from a signal message. Non-counter
// payloads leave the gauge untouched.
func (m *Model) FromSignal(msg client.WSSignalMsg) bool {
	c, err := msg.Count()
	if err != nil {
		return false
	}
	m.Set(msg.Name, msg.Seq, c.Value)
	return true
}
