// Package config loads the docdex configuration file. Settings live
// in a single TOML file; a missing file means defaults.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/bad33ndj3/docdex/internal/domain"
)

// Config holds all tunables for the cache and the fetch pipeline.
type Config struct {
	// RootDir is where per-alias directories live. Empty means the
	// per-user default (~/.docdex).
	RootDir string `toml:"root_dir"`

	Fetch   FetchConfig   `toml:"fetch"`
	Refresh RefreshConfig `toml:"refresh"`
	Logging LoggingConfig `toml:"logging"`
}

// FetchConfig bounds outbound HTTP behavior.
type FetchConfig struct {
	// TimeoutSeconds bounds each request (default 30).
	TimeoutSeconds int `toml:"timeout_seconds"`

	// ProbeRPS rate-limits flavor probing (default 4).
	ProbeRPS int `toml:"probe_rps"`

	// PreferFull upgrades sources to llms-full.txt when it appears.
	PreferFull bool `toml:"prefer_full"`
}

// RefreshConfig controls bulk refresh.
type RefreshConfig struct {
	// Concurrency is the permit count for bulk refresh (default 4).
	Concurrency int `toml:"concurrency"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error (default info).
	Level string `toml:"level"`

	// File, when set, sends logs to this path instead of stderr.
	File string `toml:"file"`
}

// Default returns the always-valid baseline configuration.
func Default() *Config {
	return &Config{
		Fetch: FetchConfig{
			TimeoutSeconds: 30,
			ProbeRPS:       4,
			PreferFull:     true,
		},
		Refresh: RefreshConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", domain.StorageErr("config", err)
	}
	return filepath.Join(home, ".docdex", "config.toml"), nil
}

// Load reads the config at path, filling defaults for anything unset.
// A missing file yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, domain.StorageErr("config", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, domain.ValidationErr("config", "invalid config file: "+err.Error())
	}

	if cfg.Fetch.TimeoutSeconds <= 0 {
		cfg.Fetch.TimeoutSeconds = 30
	}
	if cfg.Fetch.ProbeRPS <= 0 {
		cfg.Fetch.ProbeRPS = 4
	}
	if cfg.Refresh.Concurrency <= 0 {
		cfg.Refresh.Concurrency = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return cfg, nil
}

// FetchTimeout returns the fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
