package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"+15551234567", "+15551234567"},
		{"whatsapp:+15551234567", "+15551234567"},
		{"(555) 123-4567", "5551234567"},
		{"+1 555.123.4567", "+15551234567"},
		{"  +15551234567  ", "+15551234567"},
	}

	for _, tt := range tests {
		got, err := NormalizePhone(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.expected, got, "input %q", tt.input)
	}
}

func TestNormalizePhone_Invalid(t *testing.T) {
	for _, input := range []string{"", "not-a-number", "whatsapp:", "+"} {
		_, err := NormalizePhone(input)
		assert.Error(t, err, "input %q", input)
	}
}
