//go:build test

package testutils

import (
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
)

// DefaultSensorAddress is where the suite's peripheral answers.
const DefaultSensorAddress = "AA:BB:CC:DD:EE:FF"

// DefaultSensorProfile is a telemetry sensor behind a device information service:
// fff1 notifies frames, fff2 takes heartbeat writes.
const DefaultSensorProfile = `{
  "services": [
    {"uuid": "180a", "characteristics": [
      {"uuid": "2a29", "properties": "read", "value": [83, 76]}
    ]},
    {"uuid": "fff0", "characteristics": [
      {"uuid": "fff1", "properties": "read,notify", "value": [0]},
      {"uuid": "fff2", "properties": "write,write-without-response"}
    ]}
  ]
}`

// MockPeripheralSuite wires a FakeAdapter with one configurable peripheral.
//
//	type StreamSuite struct {
//	    testutils.MockPeripheralSuite
//	}
//
//	func (s *StreamSuite) SetupTest() {
//	    s.WithPeripheral().FromJSON(customProfile) // optional, before the parent
//	    s.MockPeripheralSuite.SetupTest()
//	}
type MockPeripheralSuite struct {
	suite.Suite

	Logger  *logrus.Logger
	LogHook *test.Hook

	Address           string
	PeripheralBuilder *PeripheralBuilder
	Adapter           *FakeAdapter
}

func (s *MockPeripheralSuite) SetupSuite() {
	s.Logger, s.LogHook = test.NewNullLogger()
	s.Logger.SetLevel(logrus.DebugLevel)
	if s.Address == "" {
		s.Address = DefaultSensorAddress
	}
}

// SetupTest builds a fresh adapter; a peripheral configured with WithPeripheral wins over the default.
func (s *MockPeripheralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralBuilder().FromJSON(DefaultSensorProfile)
	}
	s.Adapter = NewFakeAdapter().Add(s.Address, s.PeripheralBuilder)
	s.LogHook.Reset()
}

func (s *MockPeripheralSuite) TearDownTest() {
	s.PeripheralBuilder = nil
	s.Adapter = nil
}

// WithPeripheral returns the builder used by the next SetupTest.
func (s *MockPeripheralSuite) WithPeripheral() *PeripheralBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralBuilder()
	}
	return s.PeripheralBuilder
}

// Connection returns the connection most recently dialed to the suite peripheral.
func (s *MockPeripheralSuite) Connection() *FakeConnection {
	return s.Adapter.Connection(s.Address)
}

// Char looks up a characteristic on the current connection and fails the test when absent.
func (s *MockPeripheralSuite) Char(service, uuid string) *FakeCharacteristic {
	conn := s.Connection()
	s.Require().NotNil(conn, "peripheral MUST be connected")
	ch := conn.Char(service, uuid)
	s.Require().NotNil(ch, "characteristic %s/%s MUST exist", service, uuid)
	return ch
}
