package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/srg/sensorlink/internal/device"
)

// FakeAdapter implements device.Adapter over PeripheralBuilder profiles.
type FakeAdapter struct {
	mu          sync.Mutex
	peripherals map[string]*PeripheralBuilder
	conns       map[string]*FakeConnection
	gate        chan struct{}
	connectErr  error

	dials atomic.Int32
}

func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		peripherals: make(map[string]*PeripheralBuilder),
		conns:       make(map[string]*FakeConnection),
	}
}

// Add registers a peripheral reachable at address.
func (a *FakeAdapter) Add(address string, b *PeripheralBuilder) *FakeAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peripherals[strings.ToUpper(address)] = b
	return a
}

// Hold makes Connect block until Release is called or ctx is done.
func (a *FakeAdapter) Hold() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gate = make(chan struct{})
}

func (a *FakeAdapter) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gate != nil {
		close(a.gate)
		a.gate = nil
	}
}

// FailWith makes every subsequent Connect fail with err (nil clears it).
func (a *FakeAdapter) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectErr = err
}

func (a *FakeAdapter) Connect(ctx context.Context, address string, _ *device.ConnectOptions) (device.Connection, error) {
	a.dials.Add(1)

	a.mu.Lock()
	gate := a.gate
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	b, ok := a.peripherals[strings.ToUpper(address)]
	if !ok {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, device.ErrTimeout)
	}
	conn := b.Build(address)
	a.conns[strings.ToUpper(address)] = conn
	return conn, nil
}

// Dials returns how many Connect calls were made.
func (a *FakeAdapter) Dials() int {
	return int(a.dials.Load())
}

// Connection returns the latest connection built for address.
func (a *FakeAdapter) Connection(address string) *FakeConnection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns[strings.ToUpper(address)]
}
