package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/sensorlink/internal/device"
)

// BLECharacteristic wraps a discovered go-ble characteristic.
type BLECharacteristic struct {
	conn        *BLEConnection
	serviceUUID string
	uuid        string
	props       device.Properties
	BLEChar     *ble.Characteristic

	mu         sync.Mutex
	subscribed bool
	indicate   bool
}

func newCharacteristic(conn *BLEConnection, serviceUUID string, c *ble.Characteristic) *BLECharacteristic {
	return &BLECharacteristic{
		conn:        conn,
		serviceUUID: serviceUUID,
		uuid:        device.NormalizeUUID(c.UUID.String()),
		props:       NewProperties(c.Property),
		BLEChar:     c,
	}
}

func (c *BLECharacteristic) UUID() string {
	return c.uuid
}

func (c *BLECharacteristic) ServiceUUID() string {
	return c.serviceUUID
}

func (c *BLECharacteristic) Properties() device.Properties {
	return c.props
}

// Read reads the current value. Blocks until the peripheral answers or ctx is done.
func (c *BLECharacteristic) Read(ctx context.Context) ([]byte, error) {
	var data []byte
	err := c.do(ctx, "read", func(client ble.Client) error {
		var err error
		data, err = client.ReadCharacteristic(c.BLEChar)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write writes data; withResponse selects an acknowledged write request.
func (c *BLECharacteristic) Write(ctx context.Context, data []byte, withResponse bool) error {
	return c.do(ctx, "write", func(client ble.Client) error {
		return client.WriteCharacteristic(c.BLEChar, data, !withResponse)
	})
}

// Subscribe enables notifications, falling back to indications for indicate-only characteristics.
func (c *BLECharacteristic) Subscribe(ctx context.Context, handler func(data []byte)) error {
	indicate := !c.props.Has(device.PropNotify) && c.props.Has(device.PropIndicate)

	err := c.do(ctx, "subscribe", func(client ble.Client) error {
		return client.Subscribe(c.BLEChar, indicate, func(req []byte) {
			handler(req)
		})
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.subscribed = true
	c.indicate = indicate
	c.mu.Unlock()
	return nil
}

func (c *BLECharacteristic) Unsubscribe(ctx context.Context) error {
	c.mu.Lock()
	indicate := c.indicate
	wasSubscribed := c.subscribed
	c.subscribed = false
	c.mu.Unlock()

	if !wasSubscribed {
		return nil
	}

	return c.do(ctx, "unsubscribe", func(client ble.Client) error {
		return client.Unsubscribe(c.BLEChar, indicate)
	})
}

// do runs op on a separate goroutine so a stalled peripheral never outlives ctx.
func (c *BLECharacteristic) do(ctx context.Context, name string, op func(ble.Client) error) error {
	select {
	case <-c.conn.disconnected:
		return fmt.Errorf("%s characteristic %s: %w", name, c.uuid, device.ErrNotConnected)
	default:
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- op(c.conn.client)
	}()

	select {
	case err := <-resultCh:
		if err != nil {
			c.conn.logger.WithFields(logrus.Fields{
				"service_uuid": c.serviceUUID,
				"char_uuid":    c.uuid,
				"op":           name,
				"error":        err,
			}).Debug("Characteristic operation failed")
			return fmt.Errorf("failed to %s characteristic %s: %w", name, c.uuid, NormalizeError(err))
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s characteristic %s: %w: %w", name, c.uuid, device.ErrTimeout, ctx.Err())
	}
}
