package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	if err := c.Player.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("player: %w", err))
	}
	if err := c.Idle.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("idle: %w", err))
	}
	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("payment: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks BackendConfig for errors.
func (c *BackendConfig) Validate() error {
	for name, raw := range map[string]string{"url": c.URL, "functions_url": c.FunctionsURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid %s: scheme must be http or https", name)
		}
	}
	switch c.StatusSource {
	case "", "rest":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when status_source is postgres")
		}
	default:
		return fmt.Errorf("invalid status_source: %s (must be rest or postgres)", c.StatusSource)
	}
	return nil
}

// Validate checks PlayerConfig for errors.
func (c *PlayerConfig) Validate() error {
	if c.Volume < 0 || c.Volume > 100 {
		return errors.New("volume must be between 0 and 100")
	}
	if c.MemoryDuration < 0 {
		return errors.New("memory_duration must be non-negative")
	}
	if c.ProgressInterval < 0 {
		return errors.New("progress_interval must be non-negative")
	}
	if c.SampleRate < 0 {
		return errors.New("sample_rate must be non-negative")
	}
	if c.MaxMediaBytes < 0 {
		return errors.New("max_media_bytes must be non-negative")
	}
	return nil
}

// Validate checks IdleConfig for errors.
func (c *IdleConfig) Validate() error {
	if c.Threshold < 0 {
		return errors.New("threshold must be non-negative")
	}
	if c.DetectionInterval < 0 {
		return errors.New("detection_interval must be non-negative")
	}
	if c.MaxActivations < 0 {
		return errors.New("max_activations must be non-negative")
	}
	for _, e := range c.Events {
		if strings.TrimSpace(e) == "" {
			return errors.New("events must not contain empty names")
		}
	}
	return nil
}

// Validate checks PaymentConfig for errors.
func (c *PaymentConfig) Validate() error {
	switch c.DefaultMethod {
	case "", "paystack", "remitly", "mpesa":
		// valid
	default:
		return fmt.Errorf("invalid default_method: %s (must be paystack, remitly, or mpesa)", c.DefaultMethod)
	}
	if c.Currency != "" && len(c.Currency) != 3 {
		return fmt.Errorf("invalid currency: %s (must be a 3-letter code)", c.Currency)
	}
	if c.PollInterval < 0 {
		return errors.New("poll_interval must be non-negative")
	}
	if c.RedirectTimeout < 0 {
		return errors.New("redirect_timeout must be non-negative")
	}
	if c.ReturnPort < 0 || c.ReturnPort > 65535 {
		return errors.New("return_port must be between 0 and 65535")
	}
	return nil
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	switch c.Theme {
	case "", "auto", "dark", "light":
		// valid
	default:
		return fmt.Errorf("invalid theme: %s (must be auto, dark, or light)", c.Theme)
	}
	if c.RefreshInterval < 0 {
		return errors.New("refresh_interval must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
