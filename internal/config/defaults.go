package config

import "strings"

// DefaultIdleEvents are the input events that count as user activity.
var DefaultIdleEvents = []string{"mousedown", "mousemove", "keypress", "scroll", "touchstart"}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			StatusSource: "rest",
		},
		Player: PlayerConfig{
			Volume:           80,
			MemoryDuration:   300,
			ProgressInterval: 250,
			SampleRate:       44100,
			MaxMediaBytes:    64 << 20,
		},
		Idle: IdleConfig{
			Threshold:         60000,
			DetectionInterval: 1000,
			MaxActivations:    5,
			Events:            append([]string(nil), DefaultIdleEvents...),
		},
		Payment: PaymentConfig{
			Currency:        "USD",
			DefaultMethod:   "paystack",
			PollInterval:    3000,
			RedirectTimeout: 900,
			ReturnPort:      8787,
		},
		Redis: RedisConfig{
			ChannelPrefix: "orders:",
		},
		TUI: TUIConfig{
			Theme:           "auto",
			RefreshInterval: 250,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Backend
	if c.Backend.StatusSource == "" {
		c.Backend.StatusSource = d.Backend.StatusSource
	}
	if c.Backend.FunctionsURL == "" && c.Backend.URL != "" {
		c.Backend.FunctionsURL = strings.TrimRight(c.Backend.URL, "/") + "/functions/v1"
	}

	// Player
	if c.Player.Volume == 0 {
		c.Player.Volume = d.Player.Volume
	}
	if c.Player.MemoryDuration == 0 {
		c.Player.MemoryDuration = d.Player.MemoryDuration
	}
	if c.Player.ProgressInterval == 0 {
		c.Player.ProgressInterval = d.Player.ProgressInterval
	}
	if c.Player.SampleRate == 0 {
		c.Player.SampleRate = d.Player.SampleRate
	}
	if c.Player.MaxMediaBytes == 0 {
		c.Player.MaxMediaBytes = d.Player.MaxMediaBytes
	}

	// Idle
	if c.Idle.Threshold == 0 {
		c.Idle.Threshold = d.Idle.Threshold
	}
	if c.Idle.DetectionInterval == 0 {
		c.Idle.DetectionInterval = d.Idle.DetectionInterval
	}
	if c.Idle.MaxActivations == 0 {
		c.Idle.MaxActivations = d.Idle.MaxActivations
	}
	if len(c.Idle.Events) == 0 {
		c.Idle.Events = d.Idle.Events
	}

	// Payment
	if c.Payment.Currency == "" {
		c.Payment.Currency = d.Payment.Currency
	}
	if c.Payment.DefaultMethod == "" {
		c.Payment.DefaultMethod = d.Payment.DefaultMethod
	}
	if c.Payment.PollInterval == 0 {
		c.Payment.PollInterval = d.Payment.PollInterval
	}
	if c.Payment.RedirectTimeout == 0 {
		c.Payment.RedirectTimeout = d.Payment.RedirectTimeout
	}
	if c.Payment.ReturnPort == 0 {
		c.Payment.ReturnPort = d.Payment.ReturnPort
	}

	// Redis
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = d.Redis.ChannelPrefix
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.RefreshInterval == 0 {
		c.TUI.RefreshInterval = d.TUI.RefreshInterval
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
