package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/internal/groutine"
)

// ----------------------------
// Device Factory
// ----------------------------

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newDevice

// ----------------------------
// Adapter
// ----------------------------

// Adapter dials peripherals through a single, lazily created go-ble host device.
type Adapter struct {
	logger *logrus.Logger

	mu  sync.Mutex
	dev ble.Device
}

func NewAdapter(logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) hostDevice() (ble.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dev != nil {
		return a.dev, nil
	}

	dev, err := DeviceFactory()
	if err != nil {
		a.logger.WithField("error", err).Error("Failed to create BLE device")
		return nil, fmt.Errorf("%w: %w", device.ErrTransportUnavailable, err)
	}
	a.dev = dev
	return dev, nil
}

// Connect dials address, discovers the full GATT profile and returns the live connection.
func (a *Adapter) Connect(ctx context.Context, address string, opts *device.ConnectOptions) (device.Connection, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("device address is empty")
	}

	dev, err := a.hostDevice()
	if err != nil {
		return nil, err
	}

	connCtx := ctx
	if opts != nil && opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	a.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := dev.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		a.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}

	a.logger.WithField("address", address).Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			a.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	conn := newConnection(address, client, profile, a.logger)
	a.logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(conn.services),
	}).Info("BLE device connected successfully")
	return conn, nil
}

// Close stops the host device.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dev == nil {
		return nil
	}
	dev := a.dev
	a.dev = nil
	return dev.Stop()
}

// ----------------------------
// BLE Connection
// ----------------------------

// BLEConnection represents a live BLE connection.
type BLEConnection struct {
	address string
	client  ble.Client
	logger  *logrus.Logger

	services []*BLEService
	index    map[string]*BLEService

	disconnected chan struct{}
	closing      chan struct{}
	lostOnce     sync.Once
	closeOnce    sync.Once
	closeErr     error
}

func newConnection(address string, client ble.Client, profile *ble.Profile, logger *logrus.Logger) *BLEConnection {
	c := &BLEConnection{
		address:      address,
		client:       client,
		logger:       logger,
		index:        make(map[string]*BLEService),
		disconnected: make(chan struct{}),
		closing:      make(chan struct{}),
	}

	if profile != nil {
		for _, bleSvc := range profile.Services {
			svcUUID := device.NormalizeUUID(bleSvc.UUID.String())
			if _, dup := c.index[svcUUID]; dup {
				continue
			}
			svc := &BLEService{uuid: svcUUID, index: make(map[string]*BLECharacteristic)}
			for _, bleChar := range bleSvc.Characteristics {
				ch := newCharacteristic(c, svcUUID, bleChar)
				if _, dup := svc.index[ch.uuid]; dup {
					continue
				}
				svc.chars = append(svc.chars, ch)
				svc.index[ch.uuid] = ch
				logger.WithFields(logrus.Fields{
					"service_uuid": svcUUID,
					"char_uuid":    ch.uuid,
					"properties":   ch.props.String(),
				}).Debug("Found characteristic")
			}
			c.services = append(c.services, svc)
			c.index[svcUUID] = svc
		}
	}

	// Monitor go-ble client Disconnected() channel
	if dc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(context.Background(), "ble-connection-monitor", func(_ context.Context) {
			select {
			case <-dc.Disconnected():
				logger.WithField("address", address).Warn("Transport reported disconnection")
			case <-c.closing:
			}
			c.markLost()
		})
	} else {
		logger.Debug("Client does not support Disconnected() channel")
	}

	return c
}

func (c *BLEConnection) markLost() {
	c.lostOnce.Do(func() { close(c.disconnected) })
}

func (c *BLEConnection) Address() string {
	return c.address
}

// Services returns services in discovery order.
func (c *BLEConnection) Services() []device.Service {
	out := make([]device.Service, len(c.services))
	for i, s := range c.services {
		out[i] = s
	}
	return out
}

// GetCharacteristic retrieves a characteristic by service and characteristic UUID.
// Both UUIDs are normalized for consistent lookup (lowercase, no dashes).
// Returns a NotFoundError if the service or characteristic is not found.
func (c *BLEConnection) GetCharacteristic(service, uuid string) (device.Characteristic, error) {
	svc, ok := c.index[device.NormalizeUUID(service)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{service}}
	}
	ch, ok := svc.index[device.NormalizeUUID(uuid)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
	}
	return ch, nil
}

func (c *BLEConnection) Disconnected() <-chan struct{} {
	return c.disconnected
}

// Disconnect cancels the link. Subsequent calls return the first result.
func (c *BLEConnection) Disconnect() error {
	c.closeOnce.Do(func() {
		c.logger.WithField("address", c.address).Info("Disconnecting BLE device...")
		close(c.closing)
		c.closeErr = NormalizeError(c.client.CancelConnection())
		c.markLost()
		if c.closeErr != nil {
			c.logger.WithField("error", c.closeErr).Warn("BLE device disconnected with errors")
		}
	})
	return c.closeErr
}

// ----------------------------
// BLE Service
// ----------------------------

type BLEService struct {
	uuid  string
	chars []*BLECharacteristic
	index map[string]*BLECharacteristic
}

func (s *BLEService) UUID() string {
	return s.uuid
}

func (s *BLEService) Characteristics() []device.Characteristic {
	out := make([]device.Characteristic, len(s.chars))
	for i, ch := range s.chars {
		out[i] = ch
	}
	return out
}
