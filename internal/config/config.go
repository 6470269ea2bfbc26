package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.tunesrc, $XDG_CONFIG_HOME/tunes/config.toml, ~/.config/tunes/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	path := FindConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// Environment wins over file, defaults fill whatever is left.
	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

// Dir returns the tunes configuration directory.
func Dir() string {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ".tunes"
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "tunes")
}

// FindConfigFile returns the first existing config file path.
func FindConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".tunesrc"),
		filepath.Join(Dir(), "config.toml"),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Backend
	if v := os.Getenv("TUNES_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("TUNES_BACKEND_ANON_KEY"); v != "" {
		cfg.Backend.AnonKey = v
	}
	if v := os.Getenv("TUNES_BACKEND_FUNCTIONS_URL"); v != "" {
		cfg.Backend.FunctionsURL = v
	}
	if v := os.Getenv("TUNES_BACKEND_STATUS_SOURCE"); v != "" {
		cfg.Backend.StatusSource = v
	}
	if v := os.Getenv("TUNES_DATABASE_URL"); v != "" {
		cfg.Backend.DatabaseURL = v
	}

	// Player
	if v := os.Getenv("TUNES_PLAYER_VOLUME"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Player.Volume = i
		}
	}

	// Idle
	if v := os.Getenv("TUNES_IDLE_THRESHOLD"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Idle.Threshold = i
		}
	}
	if v := os.Getenv("TUNES_IDLE_EVENTS"); v != "" {
		cfg.Idle.Events = strings.Split(v, ",")
	}

	// Payment
	if v := os.Getenv("TUNES_PAYMENT_CURRENCY"); v != "" {
		cfg.Payment.Currency = strings.ToUpper(v)
	}
	if v := os.Getenv("TUNES_PAYMENT_METHOD"); v != "" {
		cfg.Payment.DefaultMethod = v
	}

	// Redis
	if v := os.Getenv("TUNES_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	// Storage
	if v := os.Getenv("TUNES_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}

	// TUI
	if v := os.Getenv("TUNES_TUI_THEME"); v != "" {
		cfg.TUI.Theme = v
	}

	// Log
	if v := os.Getenv("TUNES_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TUNES_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}
