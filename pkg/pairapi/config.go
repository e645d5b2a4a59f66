// Copyright 2024-2026 Aiku AI

package pairapi

import (
	"errors"
	"time"
)

// Config holds the HTTP listener settings.
type Config struct {
	Address      string        `yaml:"address" koanf:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout" koanf:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" koanf:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" koanf:"idle_timeout"`
	// RequestTimeout bounds how long /pair waits for the first outcome. The
	// pairing flow itself keeps running afterwards.
	RequestTimeout  time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
	// TrustForwardedFor logs the first X-Forwarded-For address.
	TrustForwardedFor bool `yaml:"trust_forwarded_for" koanf:"trust_forwarded_for"`
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("http.address is required")
	}
	if c.RequestTimeout > 0 && c.WriteTimeout > 0 && c.WriteTimeout <= c.RequestTimeout {
		return errors.New("http.write_timeout must be longer than http.request_timeout")
	}
	return nil
}
