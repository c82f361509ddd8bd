package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the bookd service. Values loaded from the
// YAML file can be overridden through environment variables for deploys that
// cannot ship a config file.
type Config struct {
	Server struct {
		Addr       string `yaml:"addr"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"server"`

	Book struct {
		Instrument       string `yaml:"instrument"`
		DepthLimit       int    `yaml:"depth_limit"`
		StreamIntervalMS int    `yaml:"stream_interval_ms"`
	} `yaml:"book"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns a runnable configuration for local use.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.TimeoutSec = 3
	cfg.Book.Instrument = "BTC-USD"
	cfg.Book.DepthLimit = 50
	cfg.Book.StreamIntervalMS = 1000
	cfg.Storage.Path = "data/bookd.db"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// LoadConfig reads the config file at path, falling back to defaults when
// path is empty. Environment overrides are applied after parsing.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("server timeout must be positive")
	}
	if c.Book.Instrument == "" {
		return fmt.Errorf("book instrument is required")
	}
	if c.Book.DepthLimit <= 0 {
		return fmt.Errorf("depth limit must be positive")
	}
	if c.Book.StreamIntervalMS <= 0 {
		return fmt.Errorf("stream interval must be positive")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}

func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("BOOKD_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if instrument := os.Getenv("BOOKD_INSTRUMENT"); instrument != "" {
		cfg.Book.Instrument = instrument
	}
	if path := os.Getenv("BOOKD_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
}
