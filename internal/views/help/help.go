// Package help renders the TUI help overlay from markdown with glamour.
package help

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/signal-sync/signal-sync/internal/theme"
)

const body = `# signal-tui

Live view of a **server signal**: the server owns the state, mutates it on
every tick and pushes each new value over the WebSocket.

## Keys

| Key | Action |
|-----|--------|
| q, ctrl+c | quit |
| p, space | pause / resume rendering |
| d | event log |
| k, ↑ | scroll up in the event log |
| j, ↓ | scroll down in the event log |
| ? | toggle help |
| esc | close overlay |

## Reading the gauge

- The number is the last value received.
- The bar fills once per lap of increments and springs toward the value.
- *seq* counts messages; a gap means frames were dropped.
- The stats line is refreshed from ` + "`/api/health`" + ` every 2s.
`

// Render returns the help text wrapped to width. A renderer failure falls
// back to the raw markdown.
func Render(width int) string {
	if width < 40 {
		width = 40
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return fallback()
	}
	out, err := r.Render(body)
	if err != nil {
		return fallback()
	}
	return strings.TrimRight(out, "\n")
}

func fallback() string {
	return theme.StyleDimmed.Render(body)
}
