// Package config provides configuration loading for the agora server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	NATS    NATSConfig    `yaml:"nats"`
	Auth    AuthConfig    `yaml:"auth"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `yaml:"addr"`
}

// NATSConfig configures the JetStream connection backing both stores.
type NATSConfig struct {
	// URL is the NATS server URL.
	URL string `yaml:"url"`
}

// AuthConfig tunes delegation freshness checks.
type AuthConfig struct {
	// MaxPastSkew is how far in the past a delegation timestamp may lie.
	MaxPastSkew time.Duration `yaml:"max_past_skew"`
	// MaxFutureSkew is how far ahead of server time a timestamp may lie.
	MaxFutureSkew time.Duration `yaml:"max_future_skew"`
}

// UnmarshalYAML parses skews from duration strings ("30m", "1h"). Fields
// absent from the document keep their current values.
func (a *AuthConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxPastSkew   string `yaml:"max_past_skew"`
		MaxFutureSkew string `yaml:"max_future_skew"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxPastSkew != "" {
		d, err := time.ParseDuration(raw.MaxPastSkew)
		if err != nil {
			return fmt.Errorf("max_past_skew: %w", err)
		}
		a.MaxPastSkew = d
	}
	if raw.MaxFutureSkew != "" {
		d, err := time.ParseDuration(raw.MaxFutureSkew)
		if err != nil {
			return fmt.Errorf("max_future_skew: %w", err)
		}
		a.MaxFutureSkew = d
	}
	return nil
}

// WebhookConfig configures the inbound delivery trust gate.
type WebhookConfig struct {
	// Secret is the shared HMAC secret. Prefer setting it via the
	// AGORA_WEBHOOK_SECRET environment variable over the config file.
	Secret string `yaml:"secret"`
	// AllowUnverified opts into accepting deliveries with no secret
	// configured. Off by default: the gate fails closed.
	AllowUnverified bool `yaml:"allow_unverified"`
}

// Default returns a Config with production defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		NATS:   NATSConfig{URL: "nats://127.0.0.1:4222"},
		Auth: AuthConfig{
			MaxPastSkew:   time.Hour,
			MaxFutureSkew: 10 * time.Minute,
		},
	}
}

// Load reads configuration: defaults, then the YAML file at path (if path is
// non-empty), then AGORA_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Auth.MaxPastSkew <= 0 || cfg.Auth.MaxFutureSkew <= 0 {
		return nil, fmt.Errorf("auth skew windows must be positive")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AGORA_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AGORA_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("AGORA_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("AGORA_WEBHOOK_ALLOW_UNVERIFIED"); v == "true" || v == "1" {
		cfg.Webhook.AllowUnverified = true
	}
}
