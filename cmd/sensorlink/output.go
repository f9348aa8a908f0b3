package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/internal/telemetry"
)

var (
	kindColors = map[telemetry.Kind]*color.Color{
		telemetry.KindTemperature:   color.New(color.FgYellow),
		telemetry.KindAccelerometer: color.New(color.FgCyan),
		telemetry.KindVoltage:       color.New(color.FgGreen),
	}
	labelColor = color.New(color.Bold)
	noteColor  = color.New(color.Faint)
)

// readingRecord is the JSON shape of one reading; only the fields of its kind are set.
type readingRecord struct {
	DeviceID    string   `json:"device_id,omitempty"`
	Kind        string   `json:"kind"`
	Timestamp   int64    `json:"timestamp"`
	Temperature *float64 `json:"temperature,omitempty"`
	X           *int16   `json:"x,omitempty"`
	Y           *int16   `json:"y,omitempty"`
	Z           *int16   `json:"z,omitempty"`
	Voltage     *float64 `json:"voltage,omitempty"`
}

func newReadingRecord(deviceID string, r telemetry.Reading) readingRecord {
	rec := readingRecord{
		DeviceID:  deviceID,
		Kind:      r.Kind().String(),
		Timestamp: r.Time().Unix(),
	}
	switch v := r.(type) {
	case telemetry.TemperatureReading:
		rec.Temperature = &v.Celsius
	case telemetry.AccelerometerReading:
		rec.X, rec.Y, rec.Z = &v.X, &v.Y, &v.Z
	case telemetry.VoltageReading:
		rec.Voltage = &v.Volts
	}
	return rec
}

// printReading writes "<time>  <kind>  <value>" with the kind colored.
func printReading(w io.Writer, r telemetry.Reading) {
	c, ok := kindColors[r.Kind()]
	if !ok {
		c = color.New(color.Reset)
	}
	fmt.Fprintf(w, "%s  %s  %s\n",
		r.Time().UTC().Format(time.RFC3339),
		c.Sprintf("%-13s", r.Kind()),
		r)
}

func printJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func printBinding(w io.Writer, address string, b device.Binding) {
	fmt.Fprintf(w, "Binding for %s:\n", labelColor.Sprint(address))
	fmt.Fprintf(w, "  service  %s\n", b.ServiceID)
	fmt.Fprintf(w, "  notify   %s\n", b.NotifyCharacteristicID)
	fmt.Fprintf(w, "  write    %s/%s\n", b.WriteServiceID, b.WriteCharacteristicID)
}
