package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/srg/sensorlink/internal/device"
)

// NormalizeError maps go-ble failures onto the device error sentinels the
// session layer and the CLI branch on. The original error stays in the chain.
//
// Cancellation is returned untouched so callers can still tell a requested
// teardown from a transport failure.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	var attErr ble.ATTError
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		// dial or discovery ran past ConnectOptions.ConnectTimeout
		return fmt.Errorf("%w: %w", device.ErrTimeout, err)
	case errors.Is(err, ble.ErrNotImplemented):
		return fmt.Errorf("%w: %w", device.ErrUnsupported, err)
	case errors.As(err, &attErr) && attErr == ble.ErrReqNotSupp:
		return fmt.Errorf("%w: %w", device.ErrUnsupported, err)
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "is Bluetooth turned on", "bluetooth is turned off", "can't init hci", "no response to command"):
		return fmt.Errorf("%w: %v", device.ErrTransportUnavailable, err)
	case containsAny(msg, "device already connected"):
		return fmt.Errorf("%w: %v", device.ErrAlreadyConnected, err)
	case containsAny(msg, "device not connected", "disconnected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case containsAny(msg, "timed out", "timeout"):
		return fmt.Errorf("%w: %v", device.ErrTimeout, err)
	default:
		return err
	}
}

func containsAny(s string, substrs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
