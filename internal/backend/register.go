package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/srg/sensorlink/internal/device"
)

const registerPath = "/api/device/create-from-bluetooth"

type registerRequest struct {
	Name                     string `json:"name"`
	ServiceUUID              string `json:"serviceUuid"`
	NotifyCharacteristicUUID string `json:"notifyCharacteristicUuid"`
	WriteCharacteristicUUID  string `json:"writeCharacteristicUuid"`
}

// RegisterDevice records a negotiated binding with the API.
func (c *Client) RegisterDevice(ctx context.Context, name string, b device.Binding) error {
	if name == "" {
		name = "ble"
	}
	req := registerRequest{
		Name:                     name,
		ServiceUUID:              b.ServiceID,
		NotifyCharacteristicUUID: b.NotifyCharacteristicID,
		WriteCharacteristicUUID:  b.WriteCharacteristicID,
	}
	if err := c.do(ctx, http.MethodPost, registerPath, req, nil); err != nil {
		return fmt.Errorf("register device %q: %w", name, err)
	}
	c.logger.WithFields(logrus.Fields{
		"name":    name,
		"binding": b.String(),
	}).Info("Device registered")
	return nil
}

// RegisterDescriptor registers a bound descriptor; it matches session.BindingSink.
func (c *Client) RegisterDescriptor(ctx context.Context, desc device.Descriptor) error {
	return c.RegisterDevice(ctx, desc.Name, desc.Binding())
}
