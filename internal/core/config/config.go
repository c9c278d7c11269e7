package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Assistant AssistantConfig `koanf:"assistant"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

// DatabaseConfig configures the run journal. The journal can be
// disabled entirely, in which case async runs are fire-and-forget and
// the run lookup endpoint returns not found.
type DatabaseConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type AssistantConfig struct {
	BaseURL      string        `koanf:"base_url"`
	APIKey       string        `koanf:"api_key"`
	PollInterval string        `koanf:"poll_interval"` // parsed and validated on startup
	Monthly      ProfileConfig `koanf:"monthly"`
	Quarterly    ProfileConfig `koanf:"quarterly"`
}

// ProfileConfig describes one generation profile ensured at startup.
type ProfileConfig struct {
	Name         string `koanf:"name"`
	Model        string `koanf:"model"`
	Instructions string `koanf:"instructions"`
}

type PipelineConfig struct {
	// MaxConcurrent bounds the generation fan-out. Zero means unbounded.
	MaxConcurrent int `koanf:"max_concurrent"`
}

func (c AssistantConfig) EffectivePollInterval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if c.Database.Enabled {
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required when the run journal is enabled")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
		if c.Database.Type != "" && c.Database.Type != "postgres" {
			return fmt.Errorf("unsupported database.type %q", c.Database.Type)
		}
	}

	if strings.TrimSpace(c.Assistant.APIKey) == "" {
		return fmt.Errorf("assistant.api_key is required")
	}
	if interval, err := time.ParseDuration(c.Assistant.PollInterval); err != nil {
		return fmt.Errorf("invalid assistant.poll_interval %q: %w", c.Assistant.PollInterval, err)
	} else if interval <= 0 {
		return fmt.Errorf("assistant.poll_interval must be > 0")
	}
	for _, profile := range []struct {
		section string
		cfg     ProfileConfig
	}{
		{"assistant.monthly", c.Assistant.Monthly},
		{"assistant.quarterly", c.Assistant.Quarterly},
	} {
		if strings.TrimSpace(profile.cfg.Name) == "" {
			return fmt.Errorf("%s.name is required", profile.section)
		}
		if strings.TrimSpace(profile.cfg.Model) == "" {
			return fmt.Errorf("%s.model is required", profile.section)
		}
	}

	if c.Pipeline.MaxConcurrent < 0 {
		return fmt.Errorf("pipeline.max_concurrent must be >= 0")
	}

	return nil
}

// Load parses config from defaults, an optional yaml file, and
// RECAP_-prefixed environment variables (double underscore maps to a
// nesting level, e.g. RECAP_ASSISTANT__API_KEY), then validates.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 5,
		"server.mode":             "release",
		"database.enabled":        false,
		"database.type":           "postgres",
		"database.dsn":            "",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 25,
		"database.auto_migrate":   true,
		"assistant.base_url":      "https://api.openai.com/v1",
		"assistant.api_key":       "",
		"assistant.poll_interval": "1s",
		"assistant.monthly.name":  "recap-monthly",
		"assistant.monthly.model": "gpt-4o",
		"assistant.monthly.instructions": "You summarize one month of CRM activity for a single account. " +
			"Report concrete outcomes and next steps.",
		"assistant.quarterly.name":  "recap-quarterly",
		"assistant.quarterly.model": "gpt-4o",
		"assistant.quarterly.instructions": "You combine monthly CRM activity summaries into one quarterly " +
			"narrative for a single account.",
		"pipeline.max_concurrent": 0,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("RECAP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "RECAP_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
