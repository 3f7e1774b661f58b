package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/signal-sync/signal-sync/internal/client"
	"github.com/signal-sync/signal-sync/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Paused    bool
	Spinner   string  // rendered spinner frame, shown while connecting
	Rate      float64 // messages per second
	Health    *client.HealthReport
	LastErr   error
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch {
	case m.Connected:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	case m.Spinner != "":
		connStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(m.Spinner + " Connecting...")
	default:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + fmt.Sprintf("%.0f msg/s", m.Rate)
	if m.Paused {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("paused")
	}
	if h := m.Health; h != nil {
		content += sep + healthLine(h)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func healthLine(h *client.HealthReport) string {
	var color lipgloss.Color
	switch h.Status {
	case "ok":
		color = theme.ColorHealthy
	case "degraded", "shutting_down":
		color = theme.ColorWarning
	default:
		color = theme.ColorDanger
	}
	return lipgloss.NewStyle().Foreground(color).Render(h.Status) +
		theme.StyleDimmed.Render(fmt.Sprintf("  %d sessions  rss %s  cpu %.1f%%  up %s",
			h.ActiveSessions, humanize.IBytes(h.RSSBytes), h.CPUPercent, h.Uptime))
}
