package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "service", "characteristic"
	UUIDs    []string // One or more UUIDs (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
)

// Operation errors
var (
	ErrTimeout     = errors.New("timeout")
	ErrUnsupported = errors.New("unsupported")

	// ErrTransportUnavailable means the BLE radio or the host API is absent.
	// It is fatal for streaming as a whole, not for a single device.
	ErrTransportUnavailable = errors.New("bluetooth transport unavailable")
)

// ConnectOptions holds per-connection dial settings.
type ConnectOptions struct {
	ConnectTimeout time.Duration
}

// Adapter dials peripherals. One adapter serves every session of the process.
type Adapter interface {
	Connect(ctx context.Context, address string, opts *ConnectOptions) (Connection, error)
}

// Connection represents a live link to one peripheral.
type Connection interface {
	Address() string

	// Services returns the discovered primary services in discovery order.
	Services() []Service
	GetCharacteristic(service, uuid string) (Characteristic, error)

	// Disconnected is closed when the transport reports link loss or after Disconnect.
	Disconnected() <-chan struct{}
	Disconnect() error
}

// Service represents a GATT service
type Service interface {
	UUID() string
	// Characteristics returns the service characteristics in discovery order.
	Characteristics() []Characteristic
}

// Characteristic is a single GATT characteristic of a connected peripheral.
type Characteristic interface {
	UUID() string
	ServiceUUID() string
	Properties() Properties

	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte, withResponse bool) error

	// Subscribe enables notifications; handler is invoked serially in arrival order.
	Subscribe(ctx context.Context, handler func(data []byte)) error
	Unsubscribe(ctx context.Context) error
}
