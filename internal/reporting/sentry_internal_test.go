package reporting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "uuids are redacted",
			input:    "no lease for 01234567-89ab-cdef-0123-456789abcdef",
			expected: "no lease for <uuid>",
		},
		{
			name:     "canonical keys are redacted",
			input:    `failed to evict ["users","someone@example.com"]`,
			expected: "failed to evict <key>",
		},
		{
			name:     "canonical keys with nested arrays are redacted",
			input:    `bad key ["query",["a","b"]]`,
			expected: "bad key <key>",
		},
		{
			name:     "plain errors are untouched",
			input:    "client has not been bound",
			expected: "client has not been bound",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, sanitizeError(tc.input))
		})
	}
}
