package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd(runServe).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. serve is invoked by the serve command
// with the effective configuration.
func newRootCmd(serve serveFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "signal-sync",
		Short: "Stream server-owned state to WebSocket peers",
		Long: `signal-sync owns one piece of state per connected peer, mutates it on
a fixed tick and pushes every new value over the peer's WebSocket until
the peer goes away.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "path to config file")

	rootCmd.AddCommand(
		serveCmd(serve),
		configCmd(),
		versionCmd(),
	)

	return rootCmd
}
