// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Playback PlaybackConfig   `yaml:"playback"`
	Tone     ToneConfig       `yaml:"tone"`
	Resolver ResolverConfig   `yaml:"resolver"`
	Logging  LoggingConfig    `yaml:"logging"`
}

// ServerConfig represents the control/state server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8712"`
}

// PlaybackConfig represents playback behavior configuration.
type PlaybackConfig struct {
	FadeEnabled          *bool   `yaml:"fade_enabled" default:"true"`
	FadeDurationMs       int     `yaml:"fade_duration_ms" default:"500" validate:"gte=0,lte=10000"`
	LoadTimeoutMs        int     `yaml:"load_timeout_ms" default:"10000" validate:"gt=0,lte=60000"`
	ResolveRetries       int     `yaml:"resolve_retries" default:"3" validate:"gte=1,lte=10"`
	ResolveRetryDelayMs  int     `yaml:"resolve_retry_delay_ms" default:"1000" validate:"gte=0,lte=30000"`
	PreviousRestartSec   int     `yaml:"previous_restart_sec" default:"3" validate:"gte=0"`
	InitialVolume        float64 `yaml:"initial_volume" default:"1.0" validate:"gte=0,lte=1"`
}

// FadeOn reports whether fade transitions are enabled.
func (p PlaybackConfig) FadeOn() bool {
	return p.FadeEnabled == nil || *p.FadeEnabled
}

// ToneConfig represents fallback tone configuration.
type ToneConfig struct {
	FrequencyHz float64 `yaml:"frequency_hz" default:"440" validate:"gt=0,lte=20000"`
	Waveform    string  `yaml:"waveform" default:"sine" validate:"oneof=sine square triangle"`
}

// ResolverConfig represents source-resolver configuration.
type ResolverConfig struct {
	Providers []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
}

// ProviderConfig represents a single resolver provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=http file"`
	DisplayName string         `yaml:"display_name" default:"library"`
	Settings    map[string]any `yaml:"settings" validate:"required"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("CADENZA_RESOLVER_TOKEN"); v != "" {
		for i := range c.Resolver.Providers {
			if c.Resolver.Providers[i].Type == "http" {
				c.Resolver.Providers[i].Settings["token"] = v
			}
		}
	}
	if v := os.Getenv("CADENZA_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}
