package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Player  PlayerConfig  `toml:"player"`
	Idle    IdleConfig    `toml:"idle"`
	Payment PaymentConfig `toml:"payment"`
	Redis   RedisConfig   `toml:"redis"`
	Storage StorageConfig `toml:"storage"`
	TUI     TUIConfig     `toml:"tui"`
	Log     LogConfig     `toml:"log"`
}

// BackendConfig holds settings for the hosted backend.
type BackendConfig struct {
	URL          string `toml:"url"`
	AnonKey      string `toml:"anon_key"`
	FunctionsURL string `toml:"functions_url"`
	StatusSource string `toml:"status_source"`
	DatabaseURL  string `toml:"database_url"`
}

// PlayerConfig holds audio playback settings. Durations are in milliseconds
// unless noted.
type PlayerConfig struct {
	Volume           int   `toml:"volume"`
	MemoryDuration   int   `toml:"memory_duration"` // seconds
	ProgressInterval int   `toml:"progress_interval"`
	SampleRate       int   `toml:"sample_rate"`
	MaxMediaBytes    int64 `toml:"max_media_bytes"`
}

// IdleConfig holds idle detection settings.
type IdleConfig struct {
	Threshold         int      `toml:"threshold"`
	DetectionInterval int      `toml:"detection_interval"`
	MaxActivations    int      `toml:"max_activations"`
	Events            []string `toml:"events"`
}

// PaymentConfig holds checkout settings.
type PaymentConfig struct {
	Currency        string `toml:"currency"`
	DefaultMethod   string `toml:"default_method"`
	PollInterval    int    `toml:"poll_interval"`
	RedirectTimeout int    `toml:"redirect_timeout"` // seconds
	ReturnPort      int    `toml:"return_port"`
}

// RedisConfig holds the optional realtime status channel settings.
type RedisConfig struct {
	Addr          string `toml:"addr"`
	ChannelPrefix string `toml:"channel_prefix"`
}

// StorageConfig holds local persistence settings.
type StorageConfig struct {
	Path string `toml:"path"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme           string `toml:"theme"`
	RefreshInterval int    `toml:"refresh_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Seconds converts a second setting to a duration.
func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}
