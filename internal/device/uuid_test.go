package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeUUID verifies that NormalizeUUID correctly handles various UUID formats
func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "16-bit short form",
			input:    "180d",
			expected: "180d",
		},
		{
			name:     "16-bit uppercase with 0x prefix",
			input:    "0x180D",
			expected: "180d",
		},
		{
			name:     "Full Bluetooth SIG UUID with dashes",
			input:    "0000180d-0000-1000-8000-00805f9b34fb",
			expected: "180d",
		},
		{
			name:     "Full Bluetooth SIG UUID without dashes",
			input:    "0000180d00001000800000805f9b34fb",
			expected: "180d",
		},
		{
			name:     "Custom 128-bit UUID (not SIG base)",
			input:    "6E400001-B5A3-F393-E0A9-E50E24DCCA9E",
			expected: "6e400001b5a3f393e0a9e50e24dcca9e",
		},
		{
			name:     "UUID with braces",
			input:    "{0000180d-0000-1000-8000-00805f9b34fb}",
			expected: "180d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestValidateUUID(t *testing.T) {
	t.Run("accepts short and full forms", func(t *testing.T) {
		got, err := ValidateUUID("180F", "0x2a19", "6e400001-b5a3-f393-e0a9-e50e24dcca9e")

		require.NoError(t, err, "MUST accept well-formed UUIDs")
		assert.Equal(t, []string{"180f", "2a19", "6e400001b5a3f393e0a9e50e24dcca9e"}, got)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ValidateUUID("180f", " ")

		assert.EqualError(t, err, "UUID at index 1 cannot be empty")
	})

	t.Run("rejects malformed", func(t *testing.T) {
		for _, in := range []string{"18", "zzzz", "6e400001-b5a3-f393-e0a9"} {
			_, err := ValidateUUID(in)
			assert.Error(t, err, "MUST reject %q", in)
		}
	})

	t.Run("requires input", func(t *testing.T) {
		_, err := ValidateUUID()

		assert.Error(t, err)
	})
}

func TestShortenUUID(t *testing.T) {
	assert.Equal(t, "6e400001", ShortenUUID("6e400001b5a3f393e0a9e50e24dcca9e"))
	assert.Equal(t, "180d", ShortenUUID("180d"))
}
