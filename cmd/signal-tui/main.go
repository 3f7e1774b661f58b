package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/signal-sync/signal-sync/internal/app"
	"github.com/signal-sync/signal-sync/internal/client"
)

func main() {
	var wsURL, token string

	cmd := &cobra.Command{
		Use:           "signal-tui",
		Short:         "Watch a signal-sync server signal in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := client.NewWSClient(wsURL, token)
			defer ws.Close()
			httpClient := client.NewHTTPClient(deriveHTTPBase(wsURL), token)

			p := tea.NewProgram(app.New(ws, httpClient), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&wsURL, "url", "ws://127.0.0.1:3000/ws", "WebSocket URL of the signal-sync server")
	cmd.Flags().StringVar(&token, "token", "", "auth token (if the server requires it)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// deriveHTTPBase converts ws://host:port/ws → http://host:port
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:3000"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
