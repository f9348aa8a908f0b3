package device

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// sigBaseSuffix is the Bluetooth SIG base UUID without its 32-bit prefix.
const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the internal format (lowercase, no dashes).
// Strips braces and a 0x prefix. Full 128-bit UUIDs in the Bluetooth SIG base form
// (0000xxxx-0000-1000-8000-00805f9b34fb) are reduced to the 16-bit short form (xxxx).
func NormalizeUUID(s string) string {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.TrimPrefix(n, "{")
	n = strings.TrimSuffix(n, "}")
	n = strings.TrimPrefix(n, "0x")
	n = strings.ReplaceAll(n, "-", "")

	if len(n) == 32 && strings.HasSuffix(n, sigBaseSuffix) && strings.HasPrefix(n, "0000") {
		return n[4:8]
	}
	return n
}

// NormalizeUUIDs normalizes a slice of UUID strings to internal format.
func NormalizeUUIDs(uuids []string) []string {
	out := make([]string, len(uuids))
	for i, u := range uuids {
		out[i] = NormalizeUUID(u)
	}
	return out
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
// Returns the first eight characters for long UUIDs and short UUIDs by themselves.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

// ValidateUUID validates that UUID strings are non-empty and well-formed.
// 16-bit and 32-bit short forms are accepted alongside full 128-bit UUIDs.
// Returns normalized UUID strings or an error.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	result := make([]string, 0, len(uuids))
	for i, u := range uuids {
		if strings.TrimSpace(u) == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		normalized := NormalizeUUID(u)
		switch len(normalized) {
		case 4, 8:
			if _, err := hex.DecodeString(normalized); err != nil {
				return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, u)
			}
		default:
			if _, err := uuid.Parse(normalized); err != nil {
				return nil, fmt.Errorf("invalid UUID format at index %d: %s: %w", i, u, err)
			}
		}
		result = append(result, normalized)
	}
	return result, nil
}

// EqualUUID compares two UUIDs in any accepted notation.
func EqualUUID(a, b string) bool {
	return NormalizeUUID(a) == NormalizeUUID(b)
}
