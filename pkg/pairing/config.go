// Copyright 2024-2026 Aiku AI

package pairing

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config controls retries and timing of a pairing flow.
type Config struct {
	// MaxRetries is the highest attempt index; attempt 0 is the first try.
	MaxRetries        int           `yaml:"max_retries" koanf:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" koanf:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" koanf:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" koanf:"backoff_multiplier"`
	BackoffJitter     float64       `yaml:"backoff_jitter" koanf:"backoff_jitter"`
	// FlushDelay is waited after the connection opens so the device store
	// has persisted the new account before it is exported.
	FlushDelay time.Duration `yaml:"flush_delay" koanf:"flush_delay"`
	// FlowTimeout bounds a whole flow including time spent waiting for the
	// user to enter the pairing code.
	FlowTimeout time.Duration `yaml:"flow_timeout" koanf:"flow_timeout"`
	// SendTimeout bounds each confirmation message.
	SendTimeout time.Duration `yaml:"send_timeout" koanf:"send_timeout"`
}

// DefaultConfig returns the default pairing settings. New takes zero
// backoff, flow and send timings from it. A zero MaxRetries or FlushDelay is
// kept as is.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        5,
		InitialBackoff:    5 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2,
		FlushDelay:        3 * time.Second,
		FlowTimeout:       5 * time.Minute,
		SendTimeout:       30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialBackoff == 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = max(def.MaxBackoff, c.InitialBackoff)
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	if c.FlowTimeout == 0 {
		c.FlowTimeout = def.FlowTimeout
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = def.SendTimeout
	}
	return c
}

// Validate rejects settings that would make the retry loop unbounded or
// nonsensical.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("pairing.max_retries must not be negative")
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff < c.InitialBackoff {
		return errors.New("pairing backoff must be positive and max_backoff >= initial_backoff")
	}
	if c.BackoffMultiplier < 1 {
		return errors.New("pairing.backoff_multiplier must be at least 1")
	}
	if c.BackoffJitter < 0 || c.BackoffJitter >= 1 {
		return errors.New("pairing.backoff_jitter must be in [0, 1)")
	}
	if c.FlowTimeout <= 0 {
		return errors.New("pairing.flow_timeout must be positive")
	}
	return nil
}

func (c *Config) newBackOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialBackoff,
		RandomizationFactor: c.BackoffJitter,
		Multiplier:          c.BackoffMultiplier,
		MaxInterval:         c.MaxBackoff,
	}
}
