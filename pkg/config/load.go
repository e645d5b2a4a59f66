// Copyright 2024-2026 Aiku AI

package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: WAPAIR_PAIRING__MAX_RETRIES sets pairing.max_retries.
const EnvPrefix = "WAPAIR_"

// legacyEnv maps environment variables understood by earlier deployments to
// config keys. WAPAIR_ variables take precedence.
var legacyEnv = map[string]string{
	"SESSION_IMAGE_URL": "whatsapp.image_url",
	"PM2_PROCESS_NAME":  "supervisor.pm2_process_name",
}

// Load reads the config at path, upgrading it against the example config
// (and rewriting the file when save is set), applies environment overrides
// and post-processes the result. An empty path loads the example config.
func Load(path string, save bool) (*Config, error) {
	var data []byte
	if path == "" {
		data = []byte(ExampleConfig)
	} else {
		var err error
		data, _, err = up.Do(path, save, Upgrader)
		if err != nil {
			return nil, fmt.Errorf("failed to upgrade config: %w", err)
		}
	}
	return Parse(data)
}

// Parse decodes YAML config data, applies environment overrides and
// post-processes the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	k := koanf.New(".")
	err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		return legacyEnv[key], value
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load legacy environment: %w", err)
	}
	err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}
