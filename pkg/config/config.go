// Copyright 2024-2026 Aiku AI

// Package config loads the service configuration: the YAML file, upgraded
// against the embedded example, followed by environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"

	"go.mau.fi/zeroconfig"

	"github.com/aiku/wa-pairing/pkg/connector"
	"github.com/aiku/wa-pairing/pkg/notify"
	"github.com/aiku/wa-pairing/pkg/pairapi"
	"github.com/aiku/wa-pairing/pkg/pairing"
	"github.com/aiku/wa-pairing/pkg/ratelimit"
	"github.com/aiku/wa-pairing/pkg/supervisor"
	"github.com/aiku/wa-pairing/pkg/telemetry"
	"github.com/aiku/wa-pairing/pkg/upload"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config is the root of the configuration file.
type Config struct {
	HTTP       pairapi.Config    `yaml:"http" koanf:"http"`
	WhatsApp   connector.Config  `yaml:"whatsapp" koanf:"whatsapp"`
	Pairing    pairing.Config    `yaml:"pairing" koanf:"pairing"`
	Upload     upload.Config     `yaml:"upload" koanf:"upload"`
	RateLimit  ratelimit.Config  `yaml:"rate_limit" koanf:"rate_limit"`
	Notify     notify.Config     `yaml:"notify" koanf:"notify"`
	Supervisor supervisor.Config `yaml:"supervisor" koanf:"supervisor"`
	Telemetry  telemetry.Config  `yaml:"telemetry" koanf:"telemetry"`
	Logging    zeroconfig.Config `yaml:"logging" koanf:"-"`
}

// PostProcess validates every section and compiles the message templates.
func (c *Config) PostProcess() error {
	if c.WhatsApp.SessionsDir == "" {
		return errors.New("whatsapp.sessions_dir is required")
	}
	if err := c.WhatsApp.PostProcess(); err != nil {
		return fmt.Errorf("invalid whatsapp config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Pairing.Validate(); err != nil {
		return err
	}
	if err := c.Upload.Validate(); err != nil {
		return err
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if err := c.Notify.PostProcess(); err != nil {
		return err
	}
	return nil
}
