//go:build !darwin && !linux

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/sensorlink/internal/device"
)

func newDevice() (ble.Device, error) {
	return nil, fmt.Errorf("%w: no go-ble host for %s", device.ErrTransportUnavailable, runtime.GOOS)
}
