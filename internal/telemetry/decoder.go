package telemetry

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Frame layout, big-endian byte offsets.
const (
	offTimestamp   = 0  // uint32 seconds since epoch
	offTemperature = 4  // int16, tenths of a degree Celsius
	offAccelX      = 8  // int16
	offAccelY      = 10 // int16
	offAccelZ      = 12 // int16
	offVoltage     = 28 // uint16 millivolts; bytes 14..28 are unspecified payload

	// MinFrameLen is the shortest frame carrying every field.
	MinFrameLen = offVoltage + 2
)

// Decode turns one frame into readings. Fields are decoded independently:
// a field that does not fit inside the frame is omitted, never an error.
// Readings carry the frame timestamp; a frame shorter than 4 bytes yields nothing.
func Decode(frame []byte) []Reading {
	if len(frame) < offTimestamp+4 {
		return nil
	}
	ts := time.Unix(int64(binary.BigEndian.Uint32(frame[offTimestamp:])), 0).UTC()

	out := make([]Reading, 0, len(Kinds))

	if fits(frame, offTemperature, 2) {
		raw := int16(binary.BigEndian.Uint16(frame[offTemperature:]))
		out = append(out, TemperatureReading{Celsius: float64(raw) / 10, Timestamp: ts})
	}

	if fits(frame, offAccelX, 6) {
		out = append(out, AccelerometerReading{
			X:         int16(binary.BigEndian.Uint16(frame[offAccelX:])),
			Y:         int16(binary.BigEndian.Uint16(frame[offAccelY:])),
			Z:         int16(binary.BigEndian.Uint16(frame[offAccelZ:])),
			Timestamp: ts,
		})
	}

	if fits(frame, offVoltage, 2) {
		raw := binary.BigEndian.Uint16(frame[offVoltage:])
		out = append(out, VoltageReading{Volts: float64(raw) / 1000, Timestamp: ts})
	}

	return out
}

// DecodeHex decodes a frame given as a hex string. Whitespace and an optional
// 0x prefix are ignored. The error only reports malformed hex.
func DecodeHex(s string) ([]Reading, error) {
	clean := strings.Join(strings.Fields(s), "")
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")

	frame, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("malformed frame hex: %w", err)
	}
	return Decode(frame), nil
}

func fits(frame []byte, off, n int) bool {
	return len(frame) >= off+n
}
