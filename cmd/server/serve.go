package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/signal-sync/signal-sync/internal/config"
	"github.com/signal-sync/signal-sync/internal/health"
	"github.com/signal-sync/signal-sync/internal/session"
	"github.com/signal-sync/signal-sync/internal/telemetry"
	"github.com/signal-sync/signal-sync/internal/ws"
)

type serveOptions struct {
	host     string
	port     int
	interval time.Duration
	logLevel string
}

type serveFunc func(ctx context.Context, cfg *config.Config) error

func serveCmd(run serveFunc) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the signal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "override server host")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "override server port")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "override tick interval")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	return cmd
}

// loadConfig reads the --config file, falling back to defaults when it does
// not exist, and applies flag overrides.
func loadConfig(cmd *cobra.Command, opts *serveOptions) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if opts == nil {
		return cfg, nil
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if flags.Changed("interval") {
		cfg.Sync.Interval = opts.interval
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := telemetry.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.SetupTracing(cfg.Tracing, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics(cfg.Metrics.Namespace)
	}

	reporter, err := health.NewReporter()
	if err != nil {
		logger.Warn("process health unavailable", "error", err)
	}

	store := session.NewStore(cfg.Server.MaxConnections)
	server := ws.NewServer(cfg, store, metrics, reporter, logger)

	fmt.Printf("%s signal %q every %s on %s\n",
		color.GreenString("✓"), cfg.Sync.SignalName, cfg.Sync.Interval, color.CyanString(cfg.Addr()))

	if err := server.ListenAndServe(ctx); err != nil {
		return err
	}

	fmt.Printf("%s stopped\n", color.YellowString("■"))
	return nil
}
