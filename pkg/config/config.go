// Package config loads sensorlink settings: struct defaults, an optional YAML
// file and SENSORLINK_* environment overrides, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/srg/sensorlink/internal/backend"
	"github.com/srg/sensorlink/internal/state"
)

// EnvPrefix prefixes every environment override, e.g. SENSORLINK_API_BASE_URL.
const EnvPrefix = "SENSORLINK"

// Config holds application configuration
type Config struct {
	LogLevel          string        `yaml:"log_level" mapstructure:"log_level" default:"info"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout" default:"30s"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout" default:"5s"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval" default:"60s"`
	FrameQueueSize    int           `yaml:"frame_queue_size" mapstructure:"frame_queue_size" default:"128"`
	EventQueueSize    int           `yaml:"event_queue_size" mapstructure:"event_queue_size" default:"256"`
	StatePath         string        `yaml:"state_path" mapstructure:"state_path" default:"~/.config/sensorlink/last_device.yaml"`

	API     backend.Options      `yaml:"api" mapstructure:"api"`
	Keyring state.KeyringOptions `yaml:"keyring" mapstructure:"keyring"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	defaults.SetDefaults(&cfg.API)
	return cfg
}

// Load merges defaults, the YAML file at path (skipped when path is empty) and
// the environment, then validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("connect_timeout", d.ConnectTimeout)
	v.SetDefault("probe_timeout", d.ProbeTimeout)
	v.SetDefault("heartbeat_interval", d.HeartbeatInterval)
	v.SetDefault("frame_queue_size", d.FrameQueueSize)
	v.SetDefault("event_queue_size", d.EventQueueSize)
	v.SetDefault("state_path", d.StatePath)
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.token", d.API.Token)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.max_in_flight", d.API.MaxInFlight)
	v.SetDefault("api.active_device_id", d.API.ActiveDeviceID)
	v.SetDefault("keyring.backend", d.Keyring.Backend)
	v.SetDefault("keyring.file_dir", d.Keyring.FileDir)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects non-positive durations and sizes and unknown log levels.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"connect_timeout", c.ConnectTimeout},
		{"probe_timeout", c.ProbeTimeout},
		{"heartbeat_interval", c.HeartbeatInterval},
		{"api.timeout", c.API.Timeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}

	sizes := []struct {
		name  string
		value int
	}{
		{"frame_queue_size", c.FrameQueueSize},
		{"event_queue_size", c.EventQueueSize},
		{"api.max_in_flight", c.API.MaxInFlight},
	}
	for _, s := range sizes {
		if s.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", s.name, s.value))
		}
	}

	if c.API.ActiveDeviceID < 0 {
		errs = append(errs, fmt.Errorf("api.active_device_id must not be negative"))
	}
	if strings.TrimSpace(c.StatePath) == "" {
		errs = append(errs, errors.New("state_path must be set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// IngestionEnabled reports whether readings should be posted to the API.
func (c *Config) IngestionEnabled() bool {
	return strings.TrimSpace(c.API.BaseURL) != ""
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
