package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process-startup configuration. Values come from an optional
// YAML file, overridden by HEATRACER_-prefixed environment variables,
// overridden in turn by command line flags in cmd/heatsrv.
type Config struct {
	// ListenAddr is the host:port the HTTP/WebSocket listener binds.
	ListenAddr string `yaml:"listen_addr"`
	// DebugLevel is the slog level: trace, debug, info, warn, error.
	DebugLevel string `yaml:"debug_level"`
	// TurnTimeout bounds each input phase; 0 disables phase timers.
	TurnTimeout time.Duration `yaml:"turn_timeout"`
	// WaitingGrace delays destruction of a fully disconnected waiting room.
	WaitingGrace time.Duration `yaml:"waiting_grace"`
	// SweepSchedule is the cron spec for the stale-room sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
	// RoomTTL is the inactivity age past which the sweep closes a room.
	RoomTTL time.Duration `yaml:"room_ttl"`
	// SessionTTL is how long a session outlives its last connection.
	SessionTTL time.Duration `yaml:"session_ttl"`
	// PingTimeout closes connections whose heartbeat stalls.
	PingTimeout time.Duration `yaml:"ping_timeout"`
	// SendQueueSize bounds the per-connection outbound buffer.
	SendQueueSize int `yaml:"send_queue_size"`
	// InboundRate and InboundBurst bound inbound frames per connection.
	InboundRate  float64 `yaml:"inbound_rate"`
	InboundBurst int     `yaml:"inbound_burst"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:    "127.0.0.1:8080",
		DebugLevel:    "info",
		TurnTimeout:   45 * time.Second,
		WaitingGrace:  30 * time.Second,
		SweepSchedule: "@every 2m",
		RoomTTL:       2 * time.Hour,
		SessionTTL:    1 * time.Hour,
		PingTimeout:   35 * time.Second,
		SendQueueSize: 64,
		InboundRate:   20,
		InboundBurst:  40,
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()

	// A .env file is a convenience for development; ignore a missing one.
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides fields from HEATRACER_-prefixed variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("HEATRACER_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("HEATRACER_DEBUG_LEVEL"); v != "" {
		c.DebugLevel = v
	}
	if v := os.Getenv("HEATRACER_SWEEP_SCHEDULE"); v != "" {
		c.SweepSchedule = v
	}
	for _, f := range []struct {
		env string
		dst *time.Duration
	}{
		{"HEATRACER_TURN_TIMEOUT", &c.TurnTimeout},
		{"HEATRACER_WAITING_GRACE", &c.WaitingGrace},
		{"HEATRACER_ROOM_TTL", &c.RoomTTL},
		{"HEATRACER_SESSION_TTL", &c.SessionTTL},
		{"HEATRACER_PING_TIMEOUT", &c.PingTimeout},
	} {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.env, err)
		}
		*f.dst = d
	}
	if v := os.Getenv("HEATRACER_SEND_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HEATRACER_SEND_QUEUE_SIZE: %w", err)
		}
		c.SendQueueSize = n
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	switch c.DebugLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid debug_level %q", c.DebugLevel)
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("turn_timeout must not be negative")
	}
	if c.WaitingGrace <= 0 {
		return fmt.Errorf("waiting_grace must be positive")
	}
	if c.RoomTTL <= 0 {
		return fmt.Errorf("room_ttl must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	if c.PingTimeout <= 0 {
		return fmt.Errorf("ping_timeout must be positive")
	}
	if c.SendQueueSize < 1 {
		return fmt.Errorf("send_queue_size must be at least 1")
	}
	if c.InboundRate <= 0 || c.InboundBurst < 1 {
		return fmt.Errorf("inbound rate limit must be positive")
	}
	return nil
}
