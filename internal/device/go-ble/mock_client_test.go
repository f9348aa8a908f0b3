package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// mockClient overrides the ble.Client methods used by the backend; the rest panic via the nil embed.
type mockClient struct {
	ble.Client
	mock.Mock

	disconnected chan struct{}
}

func newMockClient() *mockClient {
	return &mockClient{disconnected: make(chan struct{})}
}

func (m *mockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	p, _ := args.Get(0).(*ble.Profile)
	return p, args.Error(1)
}

func (m *mockClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	args := m.Called(c)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *mockClient) WriteCharacteristic(c *ble.Characteristic, b []byte, noRsp bool) error {
	return m.Called(c, b, noRsp).Error(0)
}

func (m *mockClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	return m.Called(c, ind, h).Error(0)
}

func (m *mockClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	return m.Called(c, ind).Error(0)
}

func (m *mockClient) CancelConnection() error {
	return m.Called().Error(0)
}

func (m *mockClient) Disconnected() <-chan struct{} {
	return m.disconnected
}

// mockDevice overrides Dial and Stop of ble.Device.
type mockDevice struct {
	ble.Device
	mock.Mock
}

func (m *mockDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	args := m.Called(ctx, a.String())
	c, _ := args.Get(0).(ble.Client)
	return c, args.Error(1)
}

func (m *mockDevice) Stop() error {
	return m.Called().Error(0)
}

func testProfile() *ble.Profile {
	return &ble.Profile{
		Services: []*ble.Service{
			{
				UUID: ble.MustParse("180a"),
				Characteristics: []*ble.Characteristic{
					{UUID: ble.MustParse("2a29"), Property: ble.CharRead},
				},
			},
			{
				UUID: ble.MustParse("6e400001-b5a3-f393-e0a9-e50e24dcca9e"),
				Characteristics: []*ble.Characteristic{
					{UUID: ble.MustParse("6e400003-b5a3-f393-e0a9-e50e24dcca9e"), Property: ble.CharNotify},
					{UUID: ble.MustParse("6e400002-b5a3-f393-e0a9-e50e24dcca9e"), Property: ble.CharWrite | ble.CharWriteNR},
					{UUID: ble.MustParse("6e400004-b5a3-f393-e0a9-e50e24dcca9e"), Property: ble.CharIndicate},
				},
			},
		},
	}
}
