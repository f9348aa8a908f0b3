package telemetry

import "encoding/binary"

// Fields holds the raw values of a full frame. Encode is the inverse of Decode
// and is used to synthesize frames for simulated peripherals.
type Fields struct {
	Timestamp   uint32
	DeciCelsius int16
	X, Y, Z     int16
	Millivolts  uint16
	Unknown     [14]byte // bytes 14..28
}

// Encode renders a MinFrameLen byte frame.
func (f Fields) Encode() []byte {
	frame := make([]byte, MinFrameLen)
	binary.BigEndian.PutUint32(frame[offTimestamp:], f.Timestamp)
	binary.BigEndian.PutUint16(frame[offTemperature:], uint16(f.DeciCelsius))
	binary.BigEndian.PutUint16(frame[offAccelX:], uint16(f.X))
	binary.BigEndian.PutUint16(frame[offAccelY:], uint16(f.Y))
	binary.BigEndian.PutUint16(frame[offAccelZ:], uint16(f.Z))
	copy(frame[offAccelZ+2:offVoltage], f.Unknown[:])
	binary.BigEndian.PutUint16(frame[offVoltage:], f.Millivolts)
	return frame
}
