// Package config loads the controller configuration from built-in
// defaults, an optional YAML file and VCC_* environment overrides, in
// that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the complete controller configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Patterns PatternsConfig `yaml:"patterns"`
	Auth     AuthConfig     `yaml:"auth"`
	Radio    RadioConfig    `yaml:"radio"`
	Status   StatusConfig   `yaml:"status"`
	Audit    AuditConfig    `yaml:"audit"`
}

// ListenConfig holds HTTP server settings.
type ListenConfig struct {
	Addr               string `yaml:"addr"`
	ReadTimeoutSec     int    `yaml:"readTimeoutSec"`
	WriteTimeoutSec    int    `yaml:"writeTimeoutSec"`
	IdleTimeoutSec     int    `yaml:"idleTimeoutSec"`
	ShutdownTimeoutSec int    `yaml:"shutdownTimeoutSec"`
}

// PatternsConfig holds the pattern library settings.
type PatternsConfig struct {
	Dir string `yaml:"dir"`
}

// AuthConfig holds token verification settings. An empty secret
// disables authentication on the versioned API.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// RadioConfig holds the broadcast pipeline settings.
type RadioConfig struct {
	QueueSize     int `yaml:"queueSize"`
	StopHoldMs    int `yaml:"stopHoldMs"`
	BusyBackoffMs int `yaml:"busyBackoffMs"`
}

// StatusConfig holds the SSE status stream settings.
type StatusConfig struct {
	HeartbeatSec      int `yaml:"heartbeatSec"`
	HeartbeatJitterMs int `yaml:"heartbeatJitterMs"`
	EventBufferSize   int `yaml:"eventBufferSize"`
}

// AuditConfig holds the audit log rotation settings.
type AuditConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Duration accessors for the integer fields.

func (l ListenConfig) ReadTimeout() time.Duration  { return time.Duration(l.ReadTimeoutSec) * time.Second }
func (l ListenConfig) WriteTimeout() time.Duration { return time.Duration(l.WriteTimeoutSec) * time.Second }
func (l ListenConfig) IdleTimeout() time.Duration  { return time.Duration(l.IdleTimeoutSec) * time.Second }

func (l ListenConfig) ShutdownTimeout() time.Duration {
	return time.Duration(l.ShutdownTimeoutSec) * time.Second
}

func (r RadioConfig) StopHold() time.Duration    { return time.Duration(r.StopHoldMs) * time.Millisecond }
func (r RadioConfig) BusyBackoff() time.Duration { return time.Duration(r.BusyBackoffMs) * time.Millisecond }

func (s StatusConfig) HeartbeatInterval() time.Duration {
	return time.Duration(s.HeartbeatSec) * time.Second
}

func (s StatusConfig) HeartbeatJitter() time.Duration {
	return time.Duration(s.HeartbeatJitterMs) * time.Millisecond
}

// Load builds the configuration. path selects an explicit YAML file;
// when empty, VCC_CONFIG is consulted and a missing file falls through
// to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("VCC_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Addr:               ":4545",
			ReadTimeoutSec:     10,
			WriteTimeoutSec:    30,
			IdleTimeoutSec:     60,
			ShutdownTimeoutSec: 30,
		},
		Patterns: PatternsConfig{
			Dir: "patterns",
		},
		Radio: RadioConfig{
			QueueSize:     8,
			StopHoldMs:    50,
			BusyBackoffMs: 100,
		},
		Status: StatusConfig{
			HeartbeatSec:      15,
			HeartbeatJitterMs: 2000,
			EventBufferSize:   50,
		},
		Audit: AuditConfig{
			Dir:        "audit",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("VCC_ADDR"); addr != "" {
		cfg.Listen.Addr = addr
	}
	if dir := os.Getenv("VCC_PATTERN_DIR"); dir != "" {
		cfg.Patterns.Dir = dir
	}
	if secret := os.Getenv("VCC_AUTH_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}
	if dir := os.Getenv("VCC_AUDIT_DIR"); dir != "" {
		cfg.Audit.Dir = dir
	}
	if v := os.Getenv("VCC_RADIO_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Radio.QueueSize = n
		}
	}
	if v := os.Getenv("VCC_STOP_HOLD_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Radio.StopHoldMs = n
		}
	}
	if v := os.Getenv("VCC_HEARTBEAT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Status.HeartbeatSec = n
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Listen.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if cfg.Listen.ShutdownTimeoutSec <= 0 || cfg.Listen.ShutdownTimeoutSec > 300 {
		return fmt.Errorf("shutdown timeout %d seconds is outside reasonable range [1, 300]", cfg.Listen.ShutdownTimeoutSec)
	}
	if cfg.Patterns.Dir == "" {
		return fmt.Errorf("pattern directory must not be empty")
	}
	if cfg.Radio.QueueSize < 1 || cfg.Radio.QueueSize > 1024 {
		return fmt.Errorf("radio queue size %d is outside reasonable range [1, 1024]", cfg.Radio.QueueSize)
	}
	if cfg.Radio.StopHoldMs <= 0 || cfg.Radio.StopHoldMs > 5000 {
		return fmt.Errorf("stop hold %d ms is outside reasonable range [1, 5000]", cfg.Radio.StopHoldMs)
	}
	if cfg.Radio.BusyBackoffMs < 0 {
		return fmt.Errorf("busy backoff must not be negative")
	}
	if cfg.Status.HeartbeatSec <= 0 || cfg.Status.HeartbeatSec > 120 {
		return fmt.Errorf("heartbeat interval %d seconds is outside reasonable range [1, 120]", cfg.Status.HeartbeatSec)
	}
	if cfg.Status.EventBufferSize < 1 || cfg.Status.EventBufferSize > 10000 {
		return fmt.Errorf("event buffer size %d is outside reasonable range [1, 10000]", cfg.Status.EventBufferSize)
	}
	if cfg.Audit.MaxSizeMB <= 0 {
		return fmt.Errorf("audit max size must be positive")
	}
	return nil
}
