package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/sensorlink/internal/device"
)

var propertyMap = []struct {
	ble ble.Property
	dev device.Properties
}{
	{ble.CharBroadcast, device.PropBroadcast},
	{ble.CharRead, device.PropRead},
	{ble.CharWriteNR, device.PropWriteNR},
	{ble.CharWrite, device.PropWrite},
	{ble.CharNotify, device.PropNotify},
	{ble.CharIndicate, device.PropIndicate},
	{ble.CharSignedWrite, device.PropSignedWrite},
	{ble.CharExtended, device.PropExtended},
}

// NewProperties converts ble.Property bit flags into device.Properties.
func NewProperties(p ble.Property) device.Properties {
	var props device.Properties
	for _, m := range propertyMap {
		if p&m.ble != 0 {
			props |= m.dev
		}
	}
	return props
}
