package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 60*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 128, cfg.FrameQueueSize)
	assert.Equal(t, 256, cfg.EventQueueSize)
	assert.Equal(t, "~/.config/sensorlink/last_device.yaml", cfg.StatePath)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 64, cfg.API.MaxInFlight)
	assert.Empty(t, cfg.API.BaseURL)
	assert.False(t, cfg.IngestionEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, DefaultConfig().API.MaxInFlight, cfg.API.MaxInFlight)
}

func TestLoadFileAndEnv(t *testing.T) {
	// GOAL: Verify file values override defaults and env overrides the file
	//
	// TEST SCENARIO: YAML sets timeouts and api → env overrides api.token and probe_timeout

	path := filepath.Join(t.TempDir(), "sensorlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
connect_timeout: 12s
probe_timeout: 2s
frame_queue_size: 16
api:
  base_url: https://api.example.com
  token: from-file
  max_in_flight: 8
  active_device_id: 42
keyring:
  backend: file
`), 0o600))

	t.Setenv("SENSORLINK_API_TOKEN", "from-env")
	t.Setenv("SENSORLINK_PROBE_TIMEOUT", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 12*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.ProbeTimeout, "env MUST override the file")
	assert.Equal(t, 16, cfg.FrameQueueSize)
	assert.Equal(t, 256, cfg.EventQueueSize, "unset keys MUST keep their defaults")
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "from-env", cfg.API.Token)
	assert.Equal(t, 8, cfg.API.MaxInFlight)
	assert.Equal(t, int64(42), cfg.API.ActiveDeviceID)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "file", cfg.Keyring.Backend)
	assert.True(t, cfg.IngestionEnabled())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.LogLevel = "chatty" },
			errMsg: "log_level",
		},
		{
			name:   "zero connect timeout",
			mutate: func(c *Config) { c.ConnectTimeout = 0 },
			errMsg: "connect_timeout must be positive",
		},
		{
			name:   "negative heartbeat interval",
			mutate: func(c *Config) { c.HeartbeatInterval = -time.Second },
			errMsg: "heartbeat_interval must be positive",
		},
		{
			name:   "zero frame queue",
			mutate: func(c *Config) { c.FrameQueueSize = 0 },
			errMsg: "frame_queue_size must be positive",
		},
		{
			name:   "zero in-flight bound",
			mutate: func(c *Config) { c.API.MaxInFlight = 0 },
			errMsg: "api.max_in_flight must be positive",
		},
		{
			name:   "empty state path",
			mutate: func(c *Config) { c.StatePath = " " },
			errMsg: "state_path must be set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: "debug",
			want:     logrus.DebugLevel,
		},
		{
			name:     "creates logger with warn level",
			logLevel: "warn",
			want:     logrus.WarnLevel,
		},
		{
			name:     "falls back to info on garbage",
			logLevel: "chatty",
			want:     logrus.InfoLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}
