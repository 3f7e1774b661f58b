package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/signal-sync/signal-sync/internal/client"
	"github.com/signal-sync/signal-sync/internal/theme"
	"github.com/signal-sync/signal-sync/internal/views/debug"
	"github.com/signal-sync/signal-sync/internal/views/gauge"
	helpview "github.com/signal-sync/signal-sync/internal/views/help"
	"github.com/signal-sync/signal-sync/internal/views/status"
)

const (
	pollInterval  = 2 * time.Second
	frameInterval = time.Second / gauge.FPS
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayDebug
)

type frameMsg time.Time

type pollMsg struct{}

type healthMsg struct {
	report *client.HealthReport
	err    error
}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	width   int
	height  int

	statusBar status.Model
	gauge     gauge.Model
	events    debug.Model

	connected bool
	paused    bool
	overlay   Overlay

	// Message rate over the last full second.
	received   int
	rateWindow time.Time
}

// New creates the root model. Either client may be nil in tests.
func New(ws *client.WSClient, http *client.HTTPClient) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		statusBar: status.New(),
		gauge:     gauge.New(),
		events:    debug.New(),
	}
}

// Init starts the WebSocket connection, the animation clock and the stats
// poller.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.ws.Listen(m.ctx),
		m.spinner.Tick,
		frameTick(),
		m.poll(),
	)
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) poll() tea.Cmd {
	if m.http == nil {
		return nil
	}
	hc, ctx := m.http, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, pollInterval)
		defer cancel()
		rep, err := hc.Health(ctx)
		return healthMsg{report: rep, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.gauge.Width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.connected {
			m.statusBar.Spinner = ""
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.statusBar.Spinner = m.spinner.View()
		return m, cmd

	case frameMsg:
		now := time.Time(msg)
		if m.rateWindow.IsZero() {
			m.rateWindow = now
		}
		if elapsed := now.Sub(m.rateWindow); elapsed >= time.Second {
			m.statusBar.Rate = float64(m.received) / elapsed.Seconds()
			m.received = 0
			m.rateWindow = now
		}
		if !m.paused {
			m.gauge.Step()
		}
		return m, frameTick()

	case pollMsg:
		return m, m.poll()

	case healthMsg:
		if msg.err == nil {
			m.statusBar.Health = msg.report
			m.events.Health(msg.report.Status)
		}
		return m, pollTick()

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.statusBar.LastErr = nil
		m.events.Connected()
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.statusBar.LastErr = msg.Err
		m.statusBar.Rate = 0
		m.received = 0
		m.events.Disconnected(msg.Err)
		return m, tea.Batch(m.ws.Listen(m.ctx), m.spinner.Tick)

	case client.WSSignalMsg:
		m.received++
		m.events.Seq(msg.Seq)
		if !m.paused {
			m.gauge.FromSignal(msg)
		}
		return m, m.ws.ReadLoop(m.ctx)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	switch m.overlay {
	case OverlayHelp:
		if key.Matches(msg, m.keys.Escape) || key.Matches(msg, m.keys.Help) {
			m.overlay = OverlayNone
		}
		return m, nil
	case OverlayDebug:
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.events.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.events.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		m.statusBar.Paused = m.paused
	}
	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayHelp:
		return helpview.Render(m.width)
	case OverlayDebug:
		return m.events.View(m.width, m.height)
	}

	body := m.gauge.View()
	if !m.connected {
		body = m.renderDisconnected()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		body,
		"  "+m.help.View(m.keys),
	)
}

func (m Model) renderDisconnected() string {
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).Render("DISCONNECTED"),
		theme.StyleDimmed.Render("Reconnecting to server..."),
	}
	if err := m.statusBar.LastErr; err != nil {
		lines = append(lines, theme.StyleDimmed.Render(err.Error()))
	}
	return theme.StyleBorder.
		Width(max(m.width-4, 20)).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
}
