package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BONDMATCH_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the defaults
// plus environment cover the zero-setup case. The returned Config has NOT
// been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BONDMATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators tweak a deployment without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setBool(&cfg.Server.Enabled, "BONDMATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BONDMATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BONDMATCH_SERVER_CORS_ORIGINS")
	setDuration(&cfg.Server.ShutdownTimeout, "BONDMATCH_SERVER_SHUTDOWN_TIMEOUT")

	setInt(&cfg.Auction.DefaultWindowSeconds, "BONDMATCH_AUCTION_DEFAULT_WINDOW_SECONDS")

	setStr(&cfg.LogLevel, "BONDMATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
