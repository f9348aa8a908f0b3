package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srg/sensorlink/internal/device"
)

// CharacteristicConfig represents a fake characteristic in a peripheral profile.
type CharacteristicConfig struct {
	UUID             string        `json:"uuid"`
	Properties       string        `json:"properties,omitempty"` // e.g., "read,write,notify"
	Value            []int         `json:"value,omitempty"`
	ReadError        string        `json:"read_error,omitempty"`
	SubscribeError   string        `json:"subscribe_error,omitempty"`
	UnsubscribeError string        `json:"unsubscribe_error,omitempty"`
	WriteError       string        `json:"write_error,omitempty"`
	ReadDelay        time.Duration `json:"-"`
}

// ServiceConfig represents a fake service configuration.
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// ProfileConfig represents the complete peripheral profile.
type ProfileConfig struct {
	Services []ServiceConfig `json:"services"`
}

// CharacteristicOption tweaks the last added characteristic.
type CharacteristicOption func(*CharacteristicConfig)

func WithReadError(msg string) CharacteristicOption {
	return func(c *CharacteristicConfig) { c.ReadError = msg }
}

func WithSubscribeError(msg string) CharacteristicOption {
	return func(c *CharacteristicConfig) { c.SubscribeError = msg }
}

func WithUnsubscribeError(msg string) CharacteristicOption {
	return func(c *CharacteristicConfig) { c.UnsubscribeError = msg }
}

func WithWriteError(msg string) CharacteristicOption {
	return func(c *CharacteristicConfig) { c.WriteError = msg }
}

func WithReadDelay(d time.Duration) CharacteristicOption {
	return func(c *CharacteristicConfig) { c.ReadDelay = d }
}

// PeripheralBuilder builds fake connections implementing device.Connection.
type PeripheralBuilder struct {
	profile ProfileConfig
}

func NewPeripheralBuilder() *PeripheralBuilder {
	return &PeripheralBuilder{}
}

// WithService adds a service to the profile.
func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service.
func (b *PeripheralBuilder) WithCharacteristic(uuid, properties string, value []byte, opts ...CharacteristicOption) *PeripheralBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}

	cfg := CharacteristicConfig{UUID: uuid, Properties: properties}
	for _, v := range value {
		cfg.Value = append(cfg.Value, int(v))
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics, cfg)
	return b
}

// FromJSON fills the profile from JSON.
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)
	if err := json.Unmarshal([]byte(jsonStr), &b.profile); err != nil {
		panic(fmt.Sprintf("FromJSON: invalid peripheral profile: %v", err))
	}
	return b
}

// Build creates a fresh connection for address.
func (b *PeripheralBuilder) Build(address string) *FakeConnection {
	conn := &FakeConnection{
		address:      address,
		disconnected: make(chan struct{}),
	}
	for _, sc := range b.profile.Services {
		svc := &FakeService{uuid: device.NormalizeUUID(sc.UUID)}
		for _, cc := range sc.Characteristics {
			props, err := device.ParseProperties(cc.Properties)
			if err != nil {
				panic(err)
			}
			value := make([]byte, len(cc.Value))
			for i, v := range cc.Value {
				value[i] = byte(v)
			}
			svc.chars = append(svc.chars, &FakeCharacteristic{
				conn:        conn,
				serviceUUID: svc.uuid,
				uuid:        device.NormalizeUUID(cc.UUID),
				props:       props,
				value:       value,
				readErr:     errorOrNil(cc.ReadError),
				subErr:      errorOrNil(cc.SubscribeError),
				unsubErr:    errorOrNil(cc.UnsubscribeError),
				writeErr:    errorOrNil(cc.WriteError),
				readDelay:   cc.ReadDelay,
			})
		}
		conn.services = append(conn.services, svc)
	}
	return conn
}

func errorOrNil(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

// FakeConnection is an in-memory device.Connection.
type FakeConnection struct {
	address  string
	services []*FakeService

	disconnected chan struct{}
	once         sync.Once
	disconnects  atomic.Int32
}

func (c *FakeConnection) Address() string {
	return c.address
}

func (c *FakeConnection) Services() []device.Service {
	out := make([]device.Service, len(c.services))
	for i, s := range c.services {
		out[i] = s
	}
	return out
}

func (c *FakeConnection) GetCharacteristic(service, uuid string) (device.Characteristic, error) {
	ch := c.Char(service, uuid)
	if ch == nil {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
	}
	return ch, nil
}

// Char returns the fake characteristic or nil.
func (c *FakeConnection) Char(service, uuid string) *FakeCharacteristic {
	for _, s := range c.services {
		if s.uuid != device.NormalizeUUID(service) {
			continue
		}
		for _, ch := range s.chars {
			if ch.uuid == device.NormalizeUUID(uuid) {
				return ch
			}
		}
	}
	return nil
}

func (c *FakeConnection) Disconnected() <-chan struct{} {
	return c.disconnected
}

func (c *FakeConnection) Disconnect() error {
	c.disconnects.Add(1)
	c.once.Do(func() { close(c.disconnected) })
	return nil
}

func (c *FakeConnection) lost() bool {
	select {
	case <-c.disconnected:
		return true
	default:
		return false
	}
}

// DropLink simulates a transport-reported link loss.
func (c *FakeConnection) DropLink() {
	c.once.Do(func() { close(c.disconnected) })
}

// Disconnects returns how many times Disconnect was called.
func (c *FakeConnection) Disconnects() int {
	return int(c.disconnects.Load())
}

type FakeService struct {
	uuid  string
	chars []*FakeCharacteristic
}

func (s *FakeService) UUID() string {
	return s.uuid
}

func (s *FakeService) Characteristics() []device.Characteristic {
	out := make([]device.Characteristic, len(s.chars))
	for i, ch := range s.chars {
		out[i] = ch
	}
	return out
}

// WriteRecord is one captured write.
type WriteRecord struct {
	Data         []byte
	WithResponse bool
}

// FakeCharacteristic records every call and can push notifications.
type FakeCharacteristic struct {
	conn        *FakeConnection
	serviceUUID string
	uuid        string
	props       device.Properties
	readDelay   time.Duration

	mu       sync.Mutex
	value    []byte
	readErr  error
	subErr   error
	unsubErr error
	writeErr error
	handler  func([]byte)
	writes   []WriteRecord

	notifyMu     sync.Mutex
	reads        atomic.Int32
	subscribes   atomic.Int32
	unsubscribes atomic.Int32
}

func (c *FakeCharacteristic) UUID() string                  { return c.uuid }
func (c *FakeCharacteristic) ServiceUUID() string           { return c.serviceUUID }
func (c *FakeCharacteristic) Properties() device.Properties { return c.props }

func (c *FakeCharacteristic) Read(ctx context.Context) ([]byte, error) {
	c.reads.Add(1)
	if c.readDelay > 0 {
		select {
		case <-time.After(c.readDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("read %s: %w", c.uuid, device.ErrTimeout)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.props.CanRead() {
		return nil, fmt.Errorf("read %s: %w", c.uuid, device.ErrUnsupported)
	}
	if c.readErr != nil {
		return nil, c.readErr
	}
	return append([]byte(nil), c.value...), nil
}

func (c *FakeCharacteristic) Write(_ context.Context, data []byte, withResponse bool) error {
	if c.conn.lost() {
		return fmt.Errorf("write %s: %w", c.uuid, device.ErrNotConnected)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.props.CanWrite() {
		return fmt.Errorf("write %s: %w", c.uuid, device.ErrUnsupported)
	}
	c.writes = append(c.writes, WriteRecord{Data: append([]byte(nil), data...), WithResponse: withResponse})
	return c.writeErr
}

func (c *FakeCharacteristic) Subscribe(_ context.Context, handler func([]byte)) error {
	c.subscribes.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.props.CanNotify() {
		return fmt.Errorf("subscribe %s: %w", c.uuid, device.ErrUnsupported)
	}
	if c.subErr != nil {
		return c.subErr
	}
	c.handler = handler
	return nil
}

func (c *FakeCharacteristic) Unsubscribe(context.Context) error {
	c.unsubscribes.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = nil
	return c.unsubErr
}

// Notify delivers data to the subscribed handler, serially like a transport.
// Returns false when nobody is subscribed.
func (c *FakeCharacteristic) Notify(data []byte) bool {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h == nil {
		return false
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	h(data)
	return true
}

// SetWriteError changes the error returned by subsequent writes.
func (c *FakeCharacteristic) SetWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *FakeCharacteristic) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

func (c *FakeCharacteristic) Reads() int        { return int(c.reads.Load()) }
func (c *FakeCharacteristic) Subscribes() int   { return int(c.subscribes.Load()) }
func (c *FakeCharacteristic) Unsubscribes() int { return int(c.unsubscribes.Load()) }

// Writes returns a copy of every write seen, failed ones included.
func (c *FakeCharacteristic) Writes() []WriteRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WriteRecord(nil), c.writes...)
}
