package device

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		expected string
	}{
		{"no uuids", &NotFoundError{Resource: "service"}, "service not found"},
		{"service", &NotFoundError{Resource: "service", UUIDs: []string{"180d"}}, `service "180d" not found`},
		{"characteristic", &NotFoundError{Resource: "characteristic", UUIDs: []string{"180d", "2a37"}}, `characteristic "2a37" not found in service "180d"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestConnectionErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("dial: %w", &ConnectionError{State: AlreadyConnected, Msg: "session streaming"})

	assert.ErrorIs(t, wrapped, ErrAlreadyConnected, "errors.Is MUST match by state")
	assert.NotErrorIs(t, wrapped, ErrNotConnected)
	assert.Equal(t, "already_connected: session streaming", errors.Unwrap(wrapped).Error())
}

func TestProperties(t *testing.T) {
	t.Run("parse and format", func(t *testing.T) {
		p, err := ParseProperties("read, Notify,write-nr")

		assert.NoError(t, err)
		assert.True(t, p.CanRead())
		assert.True(t, p.CanNotify())
		assert.True(t, p.CanWrite())
		assert.False(t, p.Has(PropWrite), "write-nr MUST not imply write with response")
		assert.Equal(t, "read,write-without-response,notify", p.String())
	})

	t.Run("indicate counts as notify capable", func(t *testing.T) {
		assert.True(t, PropIndicate.CanNotify())
	})

	t.Run("unknown property", func(t *testing.T) {
		_, err := ParseProperties("read,teleport")

		assert.EqualError(t, err, `unknown characteristic property "teleport"`)
	})
}
