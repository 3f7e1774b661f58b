package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signal-sync/signal-sync/internal/config"
)

// execServe runs "signal-sync serve args..." and returns the configuration
// handed to the server.
func execServe(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var got *config.Config
	root := newRootCmd(func(_ context.Context, cfg *config.Config) error {
		got = cfg
		return nil
	})
	root.SetArgs(append([]string{"serve"}, args...))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return got, err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestServeFlagOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 4000\n  host: 10.0.0.1\nsync:\n  interval: 50ms\n")

	cfg, err := execServe(t,
		"--config", path,
		"--port", "5000",
		"--host", "127.0.0.1",
		"--interval", "20ms",
		"--log-level", "warn",
	)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	if cfg == nil {
		t.Fatal("serve did not reach the server")
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Port = %d, want 5000 from flag", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want 127.0.0.1 from flag", cfg.Server.Host)
	}
	if cfg.Sync.Interval != 20*time.Millisecond {
		t.Errorf("Interval = %v, want 20ms from flag", cfg.Sync.Interval)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestServeFileValuesWithoutFlags(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 4000\nsync:\n  interval: 50ms\n")

	cfg, err := execServe(t, "-c", path)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	if cfg.Server.Port != 4000 || cfg.Sync.Interval != 50*time.Millisecond {
		t.Errorf("cfg = port %d interval %v, want file values 4000/50ms", cfg.Server.Port, cfg.Sync.Interval)
	}
}

func TestServeMissingFileUsesDefaults(t *testing.T) {
	cfg, err := execServe(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Port = %d, want default 3000", cfg.Server.Port)
	}
}

func TestServeRejectsInvalidOverride(t *testing.T) {
	cfg, err := execServe(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "--interval", "0s")
	if err == nil {
		t.Fatal("serve accepted a zero interval")
	}
	if cfg != nil {
		t.Error("server started with an invalid configuration")
	}
}

func TestConfigCommandPrintsYAML(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 4100\n")

	var out bytes.Buffer
	root := newRootCmd(nil)
	root.SetArgs([]string{"config", "--config", path})
	root.SetOut(&out)
	if err := root.Execute(); err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out.String(), "port: 4100") {
		t.Errorf("config output missing file value:\n%s", out.String())
	}
}
