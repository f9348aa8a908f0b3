// Package device defines the transport contract the streaming core depends on:
// connections, GATT services and characteristics, capability flags, and the
// descriptor/binding records that identify a sensor and its characteristic pair.
//
// The go-ble backend lives in the go-ble subpackage; tests use the fake
// peripheral from internal/testutils.
package device
