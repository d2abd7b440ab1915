// Package config defines the top-level configuration for the auction engine
// and provides validation helpers.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BONDMATCH_* environment
// variables.
type Config struct {
	Server   ServerConfig  `toml:"server"`
	Auction  AuctionConfig `toml:"auction"`
	LogLevel string        `toml:"log_level"`
}

// ServerConfig holds the HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// AuctionConfig holds auction-window parameters.
type AuctionConfig struct {
	// DefaultWindowSeconds applies when an RFQ auto-starts an auction
	// without naming a window.
	DefaultWindowSeconds int `toml:"default_window_seconds"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration used when the TOML file omits
// a field.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Enabled:         true,
			Port:            8080,
			ShutdownTimeout: duration{10 * time.Second},
		},
		Auction: AuctionConfig{
			DefaultWindowSeconds: 180,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("config: server port %d out of range", c.Server.Port)
		}
	}
	if c.Auction.DefaultWindowSeconds <= 0 {
		return fmt.Errorf("config: default auction window must be positive, got %d", c.Auction.DefaultWindowSeconds)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

// DefaultWindow returns the auto-start auction window as a duration.
func (c *Config) DefaultWindow() time.Duration {
	return time.Duration(c.Auction.DefaultWindowSeconds) * time.Second
}
