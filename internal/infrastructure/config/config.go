package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Host      HostConfig
	Mux       MuxConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// HostConfig selects and configures the process host backend.
type HostConfig struct {
	// Mode is "local" (in-process PTY host) or "remote" (WebSocket daemon).
	Mode    string `envconfig:"HOST_MODE" default:"local"`
	Address string `envconfig:"HOST_ADDR" default:"ws://localhost:9180/host"`
}

// MuxConfig holds session multiplexer timing knobs.
type MuxConfig struct {
	WriteDelayMs    int `envconfig:"MUX_WRITE_DELAY_MS" default:"16"`
	ResizeDelayMs   int `envconfig:"MUX_RESIZE_DELAY_MS" default:"150"`
	CreateAttempts  int `envconfig:"MUX_CREATE_ATTEMPTS" default:"3"`
	CreateBackoffMs int `envconfig:"MUX_CREATE_BACKOFF_MS" default:"200"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Host: HostConfig{
			Mode:    "local",
			Address: "ws://localhost:9180/host",
		},
		Mux: MuxConfig{
			WriteDelayMs:    16,
			ResizeDelayMs:   150,
			CreateAttempts:  3,
			CreateBackoffMs: 200,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
