package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/srg/sensorlink/internal/backend"
	"github.com/srg/sensorlink/internal/device"
	goble "github.com/srg/sensorlink/internal/device/go-ble"
	"github.com/srg/sensorlink/internal/heartbeat"
	"github.com/srg/sensorlink/internal/negotiator"
	"github.com/srg/sensorlink/internal/session"
	"github.com/srg/sensorlink/internal/state"
	"github.com/srg/sensorlink/pkg/config"
)

// Hooks replaced by tests.
var (
	newAdapter = func(logger *logrus.Logger) device.Adapter {
		return goble.NewAdapter(logger)
	}
	openTokenStore = state.OpenTokenStore
)

func closeAdapter(adapter device.Adapter, logger *logrus.Logger) {
	c, ok := adapter.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.WithField("error", err).Warn("Failed to close BLE adapter")
	}
}

// newManager builds a session manager from config.
func newManager(cfg *config.Config, adapter device.Adapter, logger *logrus.Logger, with ...session.Option) *session.Manager {
	with = append([]session.Option{
		session.WithNegotiator(negotiator.New(negotiator.Options{ProbeTimeout: cfg.ProbeTimeout}, logger)),
		session.WithHeartbeat(heartbeat.New(heartbeat.Options{Interval: cfg.HeartbeatInterval}, logger)),
	}, with...)
	return session.New(adapter, session.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		FrameQueueSize: cfg.FrameQueueSize,
		EventQueueSize: cfg.EventQueueSize,
	}, logger, with...)
}

// keyringOptions fills in the interactive password prompt for file keyrings.
func keyringOptions(cfg *config.Config) state.KeyringOptions {
	opts := cfg.Keyring
	if opts.Password == nil {
		opts.Password = promptPassword
	}
	return opts
}

// resolveToken prefers the configured token and falls back to the keyring.
func resolveToken(cfg *config.Config, logger *logrus.Logger) string {
	if cfg.API.Token != "" {
		return cfg.API.Token
	}
	store, err := openTokenStore(keyringOptions(cfg))
	if err != nil {
		logger.WithField("error", err).Warn("Keyring unavailable, ingestion runs without a token")
		return ""
	}
	token, err := store.Get()
	if err != nil {
		logger.WithField("error", err).Warn("Failed to load token from keyring")
		return ""
	}
	if token == "" {
		logger.Warn("No API token configured; run 'sensorlink token set'")
	}
	return token
}

// newAPIClient returns nil when api.base_url is not configured.
func newAPIClient(cfg *config.Config, logger *logrus.Logger) (*backend.Client, error) {
	if !cfg.IngestionEnabled() {
		return nil, nil
	}
	opts := cfg.API
	opts.Token = resolveToken(cfg, logger)
	return backend.NewClient(opts, logger)
}

func newResolver(cfg *config.Config, client *backend.Client) backend.ActiveDeviceResolver {
	if cfg.API.ActiveDeviceID > 0 {
		return backend.StaticActiveDevice(cfg.API.ActiveDeviceID)
	}
	return backend.NewActiveDevice(client)
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
