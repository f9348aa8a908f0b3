package backend

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/srg/sensorlink/internal/device"
)

const activeDevicePath = "/api/device/active"

// ActiveDeviceResolver returns the numeric id tagged on ingestion records.
type ActiveDeviceResolver interface {
	ActiveDeviceID(ctx context.Context) (int64, error)
}

// StaticActiveDevice resolves to a fixed id.
type StaticActiveDevice int64

func (s StaticActiveDevice) ActiveDeviceID(context.Context) (int64, error) {
	return int64(s), nil
}

// ActiveDeviceInfo is the server's view of the currently selected device.
type ActiveDeviceInfo struct {
	DeviceID                     int64  `json:"deviceId"`
	DeviceName                   string `json:"deviceName"`
	ServiceUUID                  string `json:"serviceUuid"`
	ReadNotifyCharacteristicUUID string `json:"readNotifyCharacteristicUuid"`
	WriteCharacteristicUUID      string `json:"writeCharacteristicUuid"`
	UserID                       int64  `json:"userId"`
}

// Descriptor converts the server record into a local descriptor with a synthesized id.
// The server does not know the peripheral address; callers set it.
func (i ActiveDeviceInfo) Descriptor() device.Descriptor {
	d := device.Descriptor{
		Name:                   i.DeviceName,
		ServiceID:              i.ServiceUUID,
		NotifyCharacteristicID: i.ReadNotifyCharacteristicUUID,
		WriteCharacteristicID:  i.WriteCharacteristicUUID,
	}
	d.EnsureID()
	return d
}

// ErrNoActiveDevice means the API has no device selected for the user.
var ErrNoActiveDevice = errors.New("no active device")

// ActiveDevice resolves the active device over HTTP and caches it until Refresh.
type ActiveDevice struct {
	client *Client

	mu     sync.Mutex
	cached *ActiveDeviceInfo
}

func NewActiveDevice(client *Client) *ActiveDevice {
	return &ActiveDevice{client: client}
}

// Fetch returns the cached record, loading it on first use.
func (a *ActiveDevice) Fetch(ctx context.Context) (ActiveDeviceInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil {
		return *a.cached, nil
	}
	return a.loadLocked(ctx)
}

// Refresh drops the cache and reloads.
func (a *ActiveDevice) Refresh(ctx context.Context) (ActiveDeviceInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cached = nil
	return a.loadLocked(ctx)
}

func (a *ActiveDevice) ActiveDeviceID(ctx context.Context) (int64, error) {
	info, err := a.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	return info.DeviceID, nil
}

func (a *ActiveDevice) loadLocked(ctx context.Context) (ActiveDeviceInfo, error) {
	var info ActiveDeviceInfo
	if err := a.client.do(ctx, http.MethodGet, activeDevicePath, nil, &info); err != nil {
		var rerr *RequestError
		if errors.As(err, &rerr) && rerr.StatusCode == http.StatusNotFound {
			return ActiveDeviceInfo{}, ErrNoActiveDevice
		}
		return ActiveDeviceInfo{}, err
	}
	if info.DeviceID == 0 {
		return ActiveDeviceInfo{}, ErrNoActiveDevice
	}
	a.cached = &info
	a.client.logger.WithField("device_id", info.DeviceID).Debug("Active device resolved")
	return info, nil
}
