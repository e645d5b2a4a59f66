// Copyright 2024-2026 Aiku AI

// Package ratelimit admits pairing requests per phone number using a fixed
// window counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and tunes the limiter backend.
type Config struct {
	Backend string        `yaml:"backend" koanf:"backend"`
	Limit   int           `yaml:"limit" koanf:"limit"`
	Window  time.Duration `yaml:"window" koanf:"window"`
	Redis   RedisConfig   `yaml:"redis" koanf:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" koanf:"addr"`
	Password  string `yaml:"password" koanf:"password"`
	DB        int    `yaml:"db" koanf:"db"`
	KeyPrefix string `yaml:"key_prefix" koanf:"key_prefix"`
}

// Validate checks the backend name and window parameters.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendNone:
		return nil
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.Backend)
	}
	if c.Limit <= 0 {
		return errors.New("rate limit must be positive")
	}
	if c.Window < time.Second {
		return errors.New("rate limit window must be at least one second")
	}
	if c.Backend == BackendRedis && c.Redis.Addr == "" {
		return errors.New("redis rate limiter requires an address")
	}
	return nil
}

// Limiter decides whether another request for key is admitted. An error
// means the decision could not be made and the request must be denied.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// New creates the limiter selected by cfg. The none backend admits every
// request.
func New(cfg Config, log zerolog.Logger) (Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.With().Str("component", "ratelimit").Str("backend", cfg.Backend).Logger()
	switch cfg.Backend {
	case BackendMemory:
		log.Debug().Int("limit", cfg.Limit).Dur("window", cfg.Window).Msg("Using in-memory rate limiter")
		return NewMemory(cfg.Limit, cfg.Window), nil
	case BackendRedis:
		log.Debug().Str("addr", cfg.Redis.Addr).Msg("Using Redis rate limiter")
		return NewRedis(cfg, log), nil
	default:
		return Unlimited{}, nil
	}
}

// Unlimited admits every request.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }
func (Unlimited) Close() error                                { return nil }
