package device

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// idNamespace seeds synthesized descriptor ids.
var idNamespace = uuid.MustParse("5e2c2a4e-8f0b-4b57-9d7a-6f3c1d2e9a10")

// Descriptor identifies one sensor peripheral and, once bound, its characteristic pair.
// A Descriptor is treated as immutable after it has been bound to a session.
type Descriptor struct {
	ID                     string `yaml:"id" json:"id"`
	Name                   string `yaml:"name,omitempty" json:"name,omitempty"`
	Address                string `yaml:"address,omitempty" json:"address,omitempty"`
	ServiceID              string `yaml:"service_id,omitempty" json:"serviceId,omitempty"`
	NotifyCharacteristicID string `yaml:"notify_characteristic_id,omitempty" json:"notifyCharacteristicId,omitempty"`
	WriteServiceID         string `yaml:"write_service_id,omitempty" json:"writeServiceId,omitempty"`
	WriteCharacteristicID  string `yaml:"write_characteristic_id,omitempty" json:"writeCharacteristicId,omitempty"`
}

// DialAddress returns the address used to connect; the id doubles as address when unset.
func (d *Descriptor) DialAddress() string {
	if d.Address != "" {
		return d.Address
	}
	return d.ID
}

// HasBinding reports whether service, notify and write UUIDs are all known.
func (d *Descriptor) HasBinding() bool {
	return d.ServiceID != "" && d.NotifyCharacteristicID != "" && d.WriteCharacteristicID != ""
}

// Binding returns the characteristic pair recorded in the descriptor.
func (d *Descriptor) Binding() Binding {
	writeSvc := d.WriteServiceID
	if writeSvc == "" {
		writeSvc = d.ServiceID
	}
	return Binding{
		ServiceID:              d.ServiceID,
		NotifyCharacteristicID: d.NotifyCharacteristicID,
		WriteServiceID:         writeSvc,
		WriteCharacteristicID:  d.WriteCharacteristicID,
	}
}

// EnsureID synthesizes a deterministic id from name, service and notify UUIDs when ID is empty.
func (d *Descriptor) EnsureID() string {
	if d.ID != "" {
		return d.ID
	}
	name := d.Name
	if name == "" {
		name = "ble"
	}
	seed := fmt.Sprintf("%s-%s-%s", name, NormalizeUUID(d.ServiceID), NormalizeUUID(d.NotifyCharacteristicID))
	d.ID = uuid.NewSHA1(idNamespace, []byte(seed)).String()
	return d.ID
}

// Validate checks that the descriptor can be dialed and that every UUID present is well-formed.
func (d *Descriptor) Validate() error {
	if d.DialAddress() == "" {
		return errors.New("descriptor has neither id nor address")
	}

	fields := []struct {
		name, value string
	}{
		{"service", d.ServiceID},
		{"notify characteristic", d.NotifyCharacteristicID},
		{"write service", d.WriteServiceID},
		{"write characteristic", d.WriteCharacteristicID},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, err := ValidateUUID(f.value); err != nil {
			return fmt.Errorf("invalid %s UUID: %w", f.name, err)
		}
	}
	return nil
}

// Binding is the characteristic pair chosen by negotiation.
type Binding struct {
	ServiceID              string `json:"serviceId"`
	NotifyCharacteristicID string `json:"notifyCharacteristicId"`
	WriteServiceID         string `json:"writeServiceId"`
	WriteCharacteristicID  string `json:"writeCharacteristicId"`
}

// IsZero reports whether no binding has been produced.
func (b Binding) IsZero() bool {
	return b == Binding{}
}

// Apply freezes the binding into a copy of desc.
func (b Binding) Apply(desc Descriptor) Descriptor {
	desc.ServiceID = b.ServiceID
	desc.NotifyCharacteristicID = b.NotifyCharacteristicID
	desc.WriteCharacteristicID = b.WriteCharacteristicID
	desc.WriteServiceID = ""
	if b.WriteServiceID != "" && !EqualUUID(b.WriteServiceID, b.ServiceID) {
		desc.WriteServiceID = b.WriteServiceID
	}
	return desc
}

func (b Binding) String() string {
	return fmt.Sprintf("service=%s notify=%s write=%s/%s",
		b.ServiceID, b.NotifyCharacteristicID, b.WriteServiceID, b.WriteCharacteristicID)
}
