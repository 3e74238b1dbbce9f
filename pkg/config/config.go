// Package config holds runtime configuration for the governor stack.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds library configuration. Durations are expressed in seconds to
// keep YAML files plain.
type Config struct {
	LogLevel         string `yaml:"log_level" default:"info"`
	RefreshRateSec   int    `yaml:"refresh_rate_sec" default:"5"`
	OnlineTimeoutSec int    `yaml:"online_timeout_sec" default:"20"`
	WorkerCount      int    `yaml:"worker_count" default:"4"`
	EventBufferSize  int    `yaml:"event_buffer_size" default:"256"`
	ValueBufferSize  int    `yaml:"value_buffer_size" default:"4096"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// LoadConfig reads a YAML config file over the defaults. Fields absent from
// the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the scheduler and buffers cannot work with.
func (c *Config) Validate() error {
	if c.RefreshRateSec <= 0 {
		return fmt.Errorf("refresh_rate_sec must be > 0, got %d", c.RefreshRateSec)
	}
	if c.OnlineTimeoutSec <= 0 {
		return fmt.Errorf("online_timeout_sec must be > 0, got %d", c.OnlineTimeoutSec)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker_count must be > 0, got %d", c.WorkerCount)
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("event_buffer_size must be > 0, got %d", c.EventBufferSize)
	}
	if c.ValueBufferSize <= 0 {
		return fmt.Errorf("value_buffer_size must be > 0, got %d", c.ValueBufferSize)
	}
	return nil
}

// RefreshRate returns the maintenance scheduling period.
func (c *Config) RefreshRate() time.Duration {
	return time.Duration(c.RefreshRateSec) * time.Second
}

// OnlineTimeout returns the device liveness window.
func (c *Config) OnlineTimeout() time.Duration {
	return time.Duration(c.OnlineTimeoutSec) * time.Second
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
