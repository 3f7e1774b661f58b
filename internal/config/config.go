package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sync    SyncConfig    `yaml:"sync"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	AuthToken       string        `yaml:"auth_token"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxConnections  int           `yaml:"max_connections"` // 0 = unlimited
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SyncConfig controls every counter session the server starts.
type SyncConfig struct {
	SignalName   string        `yaml:"signal_name"`
	Interval     time.Duration `yaml:"interval"`
	InitialValue int64         `yaml:"initial_value"`
	Increment    int64         `yaml:"increment"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// Envelope wraps each state in {type,name,seq,payload}; false sends the bare state.
	Envelope bool `yaml:"envelope"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig controls the OpenTelemetry tracer provider. Each session
// produces one span.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // "stdout"
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			Host:            "0.0.0.0",
			MaxConnections:  1024,
			ShutdownTimeout: 5 * time.Second,
		},
		Sync: SyncConfig{
			SignalName:   "count",
			Interval:     10 * time.Millisecond,
			InitialValue: 0,
			Increment:    1,
			WriteTimeout: 5 * time.Second,
			Envelope:     true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "signal_sync",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "stdout",
			SampleRatio: 1,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads path over the defaults. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.WriteTimeout <= 0 {
		return fmt.Errorf("sync.write_timeout must be positive, got %s", c.Sync.WriteTimeout)
	}
	if strings.TrimSpace(c.Sync.SignalName) == "" {
		return fmt.Errorf("sync.signal_name must not be empty")
	}
	if c.Tracing.Exporter != "stdout" {
		return fmt.Errorf("tracing.exporter %q: want stdout", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio %v out of range [0,1]", c.Tracing.SampleRatio)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// Addr is the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
