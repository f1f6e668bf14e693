// Package config handles sfc configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/superfill/sfc/match"
)

// Config is the top-level sfc configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Storage   StorageConfig   `yaml:"storage"`
	Match     match.Config    `yaml:"match"`
	Provider  ProviderConfig  `yaml:"provider"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MCPStdio     bool          `yaml:"mcp_stdio"`
}

// BrowserConfig controls the Chrome lifecycle. Headful is opt-in: the zero
// value runs headless.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Headful          bool          `yaml:"headful"`
	Stealth          bool          `yaml:"stealth"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// StorageConfig locates the SQLite databases.
type StorageConfig struct {
	Path          string `yaml:"path"`
	TelemetryPath string `yaml:"telemetry_path"`
}

// ProviderConfig selects the AI matcher backend. An empty provider disables
// the AI path entirely; matching stays local.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"` // prefer the key vault; this is a dev override
}

// TelemetryConfig controls the event log.
type TelemetryConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8747"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "superfill.db"
	}
	if c.Storage.TelemetryPath == "" {
		c.Storage.TelemetryPath = "superfill_events.db"
	}
	if c.Telemetry.RetentionDays <= 0 {
		c.Telemetry.RetentionDays = 30
	}

	def := match.DefaultConfig()
	if c.Match.PurposeWeight <= 0 {
		c.Match.PurposeWeight = def.PurposeWeight
	}
	if c.Match.TagWeight <= 0 {
		c.Match.TagWeight = def.TagWeight
	}
	if c.Match.LabelWeight <= 0 {
		c.Match.LabelWeight = def.LabelWeight
	}
	if c.Match.FormatWeight <= 0 {
		c.Match.FormatWeight = def.FormatWeight
	}
	if c.Match.MatchThreshold <= 0 {
		c.Match.MatchThreshold = def.MatchThreshold
	}
	if c.Match.AutoFillThreshold <= 0 {
		c.Match.AutoFillThreshold = def.AutoFillThreshold
	}
	if c.Match.SimpleMatchConfidence <= 0 {
		c.Match.SimpleMatchConfidence = def.SimpleMatchConfidence
	}
	if c.Match.MaxFields <= 0 {
		c.Match.MaxFields = def.MaxFields
	}
	if c.Match.MaxMemories <= 0 {
		c.Match.MaxMemories = def.MaxMemories
	}
	if c.Match.MaxTokensPerBlock <= 0 {
		c.Match.MaxTokensPerBlock = def.MaxTokensPerBlock
	}
}
