package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/srg/sensorlink/internal/backend"
	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/internal/negotiator"
	"github.com/srg/sensorlink/internal/session"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the sensor dropped the link while streaming.
	// A user-requested stop (Ctrl+C, --count, --duration) is not an error.
	ErrConnectionLost = errors.New("connection lost")

	ErrPartialBinding = errors.New("--service, --notify and --write must be given together")
)

// FormatUserError turns an error chain into a message for the terminal.
func FormatUserError(err error) string {
	var (
		negErr *negotiator.NegotiationError
		reqErr *backend.RequestError
	)

	switch {
	case errors.Is(err, device.ErrTransportUnavailable):
		return "Bluetooth is unavailable; make sure an adapter is present and powered on"
	case errors.Is(err, session.ErrNoDeviceSelected):
		return "no device selected; pass an address or run 'sensorlink negotiate <address>' first"
	case errors.As(err, &negErr):
		switch {
		case errors.Is(negErr, negotiator.ErrNoWriteCharacteristic):
			return "the sensor exposes no writable characteristic for the heartbeat"
		case len(negErr.Probed) > 0:
			return fmt.Sprintf("none of the %d notify characteristics answered a probe read; pass --service, --notify and --write", len(negErr.Probed))
		default:
			return "the sensor exposes no notify characteristic"
		}
	case errors.Is(err, session.ErrSubscribeFailed):
		return fmt.Sprintf("could not enable notifications: %v", err)
	case errors.Is(err, device.ErrAlreadyConnected):
		return "the sensor is already streaming in this process"
	case errors.Is(err, backend.ErrNoActiveDevice):
		return "the API has no active device; select one there or set api.active_device_id"
	case errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusUnauthorized:
		return "the API rejected the token; run 'sensorlink token set'"
	case errors.Is(err, device.ErrTimeout):
		return fmt.Sprintf("the sensor did not answer in time: %v", err)
	default:
		return err.Error()
	}
}
