package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults failed: %v", err)
	}
	if cfg.Listen.Addr != ":4545" {
		t.Errorf("default addr = %q, want :4545", cfg.Listen.Addr)
	}
	if cfg.Radio.StopHold() != 50*time.Millisecond {
		t.Errorf("default stop hold = %v, want 50ms", cfg.Radio.StopHold())
	}
	if cfg.Status.HeartbeatInterval() != 15*time.Second {
		t.Errorf("default heartbeat = %v, want 15s", cfg.Status.HeartbeatInterval())
	}
	if cfg.Auth.Secret != "" {
		t.Errorf("auth secret defaults to %q, want empty (auth disabled)", cfg.Auth.Secret)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vcc.yaml")
	content := `
listen:
  addr: ":9999"
patterns:
  dir: /srv/patterns
radio:
  queueSize: 16
  stopHoldMs: 25
status:
  heartbeatSec: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen.Addr != ":9999" {
		t.Errorf("addr = %q, want :9999", cfg.Listen.Addr)
	}
	if cfg.Patterns.Dir != "/srv/patterns" {
		t.Errorf("pattern dir = %q, want /srv/patterns", cfg.Patterns.Dir)
	}
	if cfg.Radio.QueueSize != 16 {
		t.Errorf("queue size = %d, want 16", cfg.Radio.QueueSize)
	}
	if cfg.Radio.StopHoldMs != 25 {
		t.Errorf("stop hold = %d, want 25", cfg.Radio.StopHoldMs)
	}
	// Unset file keys keep their defaults.
	if cfg.Status.EventBufferSize != 50 {
		t.Errorf("event buffer size = %d, want default 50", cfg.Status.EventBufferSize)
	}
}

func TestExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load with explicit missing file succeeded, want error")
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vcc.yaml")
	if err := os.WriteFile(path, []byte("listen:\n  addr: \":9999\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VCC_ADDR", ":7777")
	t.Setenv("VCC_AUTH_SECRET", "hunter2")
	t.Setenv("VCC_STOP_HOLD_MS", "75")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen.Addr != ":7777" {
		t.Errorf("addr = %q, want env override :7777", cfg.Listen.Addr)
	}
	if cfg.Auth.Secret != "hunter2" {
		t.Errorf("secret = %q, want env override", cfg.Auth.Secret)
	}
	if cfg.Radio.StopHoldMs != 75 {
		t.Errorf("stop hold = %d, want 75", cfg.Radio.StopHoldMs)
	}
}

func TestValidationRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"empty addr", func(c *Config) { c.Listen.Addr = "" }, "listen address"},
		{"zero shutdown timeout", func(c *Config) { c.Listen.ShutdownTimeoutSec = 0 }, "shutdown timeout"},
		{"empty pattern dir", func(c *Config) { c.Patterns.Dir = "" }, "pattern directory"},
		{"zero queue", func(c *Config) { c.Radio.QueueSize = 0 }, "queue size"},
		{"negative stop hold", func(c *Config) { c.Radio.StopHoldMs = -1 }, "stop hold"},
		{"zero heartbeat", func(c *Config) { c.Status.HeartbeatSec = 0 }, "heartbeat"},
		{"huge buffer", func(c *Config) { c.Status.EventBufferSize = 100000 }, "event buffer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := validate(cfg)
			if err == nil {
				t.Fatal("validate succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestMalformedYAMLFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vcc.yaml")
	if err := os.WriteFile(path, []byte("listen: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load with malformed YAML succeeded, want error")
	}
}
