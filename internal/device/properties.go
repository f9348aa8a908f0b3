package device

import (
	"fmt"
	"strings"
)

// Properties is the characteristic capability bitmask. Bit values follow the
// GATT characteristic properties field.
type Properties uint8

const (
	PropBroadcast   Properties = 0x01
	PropRead        Properties = 0x02
	PropWriteNR     Properties = 0x04
	PropWrite       Properties = 0x08
	PropNotify      Properties = 0x10
	PropIndicate    Properties = 0x20
	PropSignedWrite Properties = 0x40
	PropExtended    Properties = 0x80
)

var propertyNames = []struct {
	prop Properties
	name string
}{
	{PropBroadcast, "broadcast"},
	{PropRead, "read"},
	{PropWriteNR, "write-without-response"},
	{PropWrite, "write"},
	{PropNotify, "notify"},
	{PropIndicate, "indicate"},
	{PropSignedWrite, "signed-write"},
	{PropExtended, "extended"},
}

func (p Properties) Has(flag Properties) bool {
	return p&flag != 0
}

func (p Properties) CanRead() bool {
	return p.Has(PropRead)
}

// CanWrite reports whether either write flavor is supported.
func (p Properties) CanWrite() bool {
	return p.Has(PropWrite) || p.Has(PropWriteNR)
}

// CanNotify reports whether the peripheral can push values (notify or indicate).
func (p Properties) CanNotify() bool {
	return p.Has(PropNotify) || p.Has(PropIndicate)
}

func (p Properties) String() string {
	var names []string
	for _, pn := range propertyNames {
		if p.Has(pn.prop) {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseProperties parses a comma separated list like "read,notify".
// "write-nr" and "writenr" are accepted for write-without-response.
func ParseProperties(s string) (Properties, error) {
	var p Properties
	for _, raw := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		switch name {
		case "write-nr", "writenr":
			name = "write-without-response"
		}
		found := false
		for _, pn := range propertyNames {
			if pn.name == name {
				p |= pn.prop
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown characteristic property %q", raw)
		}
	}
	return p, nil
}
