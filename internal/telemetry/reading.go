// Package telemetry decodes the fixed-layout sensor frame into typed readings.
package telemetry

import (
	"fmt"
	"time"
)

// Kind tags the concrete Reading type.
type Kind int

const (
	KindTemperature Kind = iota + 1
	KindAccelerometer
	KindVoltage
)

func (k Kind) String() string {
	switch k {
	case KindTemperature:
		return "temperature"
	case KindAccelerometer:
		return "accelerometer"
	case KindVoltage:
		return "voltage"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Kinds lists every reading kind in frame order.
var Kinds = []Kind{KindTemperature, KindAccelerometer, KindVoltage}

// Reading is one decoded value. Implementations are immutable value types.
type Reading interface {
	Kind() Kind
	Time() time.Time
	String() string
}

type TemperatureReading struct {
	Celsius   float64
	Timestamp time.Time
}

func (r TemperatureReading) Kind() Kind      { return KindTemperature }
func (r TemperatureReading) Time() time.Time { return r.Timestamp }
func (r TemperatureReading) String() string  { return fmt.Sprintf("%.1f°C", r.Celsius) }

type AccelerometerReading struct {
	X, Y, Z   int16
	Timestamp time.Time
}

func (r AccelerometerReading) Kind() Kind      { return KindAccelerometer }
func (r AccelerometerReading) Time() time.Time { return r.Timestamp }
func (r AccelerometerReading) String() string {
	return fmt.Sprintf("x=%d y=%d z=%d", r.X, r.Y, r.Z)
}

type VoltageReading struct {
	Volts     float64
	Timestamp time.Time
}

func (r VoltageReading) Kind() Kind      { return KindVoltage }
func (r VoltageReading) Time() time.Time { return r.Timestamp }
func (r VoltageReading) String() string  { return fmt.Sprintf("%.3fV", r.Volts) }
