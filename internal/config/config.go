// Package config loads the optional uxragent.yaml tuning file and the
// process environment, merging user overrides on top of built-in
// defaults (spec.md §6 "Environment variables" plus the TTL/backoff
// defaults named throughout §4). Grounded on the teacher's
// config loader: read YAML, merge onto built-in defaults with
// dario.cat/mergo, resolve environment last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Port          string
	Host          string
	WorkspacePath string

	LockTTL               time.Duration
	ContentionLogSize     int
	IdempotencyTTL        time.Duration
	IdempotencyMaxEntries int

	RetryDelayMs       int
	RetryBackoffFactor float64
	MaxRetryDelayMs    int

	SlackToken   string
	SlackChannel string
}

// YAMLConfig is the shape of uxragent.yaml (all fields optional).
type YAMLConfig struct {
	Port          string `yaml:"port"`
	Host          string `yaml:"host"`
	WorkspacePath string `yaml:"workspacePath"`

	Locks *struct {
		TTLSeconds        int `yaml:"ttlSeconds"`
		ContentionLogSize int `yaml:"contentionLogSize"`
	} `yaml:"locks"`

	Idempotency *struct {
		TTLSeconds int `yaml:"ttlSeconds"`
		MaxEntries int `yaml:"maxEntries"`
	} `yaml:"idempotency"`

	Retry *struct {
		DelayMs       int     `yaml:"delayMs"`
		BackoffFactor float64 `yaml:"backoffFactor"`
		MaxDelayMs    int     `yaml:"maxDelayMs"`
	} `yaml:"retry"`

	Slack *struct {
		TokenEnv string `yaml:"tokenEnv"`
		Channel  string `yaml:"channel"`
	} `yaml:"slack"`
}

// defaults returns the built-in configuration, applied before any
// uxragent.yaml or environment override.
func defaults() *Config {
	return &Config{
		Port:                  "34872",
		Host:                  "0.0.0.0",
		WorkspacePath:         ".",
		LockTTL:               15 * time.Second,
		ContentionLogSize:     500,
		IdempotencyTTL:        5 * time.Minute,
		IdempotencyMaxEntries: 500,
		RetryDelayMs:          1500,
		RetryBackoffFactor:    2.0,
		MaxRetryDelayMs:       30000,
	}
}

// Load reads .env (if present), uxragent.yaml (if present) under
// configDir, and environment variables, in that order of increasing
// precedence, merging onto the built-in defaults.
func Load(configDir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	cfg := defaults()

	yamlPath := filepath.Join(configDir, "uxragent.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		var y YAMLConfig
		if err := yaml.Unmarshal(data, &y); err != nil {
			return nil, fmt.Errorf("parse %s: %w", yamlPath, err)
		}
		if err := applyYAML(cfg, &y); err != nil {
			return nil, fmt.Errorf("merge %s: %w", yamlPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", yamlPath, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyYAML merges non-zero YAML fields onto cfg using mergo, the way
// the teacher resolves its own queue/system config sections.
func applyYAML(cfg *Config, y *YAMLConfig) error {
	overlay := *cfg
	if y.Port != "" {
		overlay.Port = y.Port
	}
	if y.Host != "" {
		overlay.Host = y.Host
	}
	if y.WorkspacePath != "" {
		overlay.WorkspacePath = y.WorkspacePath
	}
	if y.Locks != nil {
		if y.Locks.TTLSeconds > 0 {
			overlay.LockTTL = time.Duration(y.Locks.TTLSeconds) * time.Second
		}
		if y.Locks.ContentionLogSize > 0 {
			overlay.ContentionLogSize = y.Locks.ContentionLogSize
		}
	}
	if y.Idempotency != nil {
		if y.Idempotency.TTLSeconds > 0 {
			overlay.IdempotencyTTL = time.Duration(y.Idempotency.TTLSeconds) * time.Second
		}
		if y.Idempotency.MaxEntries > 0 {
			overlay.IdempotencyMaxEntries = y.Idempotency.MaxEntries
		}
	}
	if y.Retry != nil {
		if y.Retry.DelayMs > 0 {
			overlay.RetryDelayMs = y.Retry.DelayMs
		}
		if y.Retry.BackoffFactor > 0 {
			overlay.RetryBackoffFactor = y.Retry.BackoffFactor
		}
		if y.Retry.MaxDelayMs > 0 {
			overlay.MaxRetryDelayMs = y.Retry.MaxDelayMs
		}
	}
	if y.Slack != nil {
		if y.Slack.TokenEnv != "" {
			overlay.SlackToken = os.Getenv(y.Slack.TokenEnv)
		}
		if y.Slack.Channel != "" {
			overlay.SlackChannel = y.Slack.Channel
		}
	}

	if err := mergo.Merge(cfg, overlay, mergo.WithOverride); err != nil {
		return err
	}
	return nil
}

// applyEnv gives PORT/HOST/WORKSPACE_PATH the final say (spec.md §6).
func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("WORKSPACE_PATH"); v != "" {
		cfg.WorkspacePath = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.SlackToken = v
	}
	if v := os.Getenv("SLACK_CHANNEL"); v != "" {
		cfg.SlackChannel = v
	}
}
