package utils

import (
	"errors"
	"strings"
)

// NormalizePhone strips channel prefixes ("whatsapp:+1555...") and
// formatting noise from a provider-supplied phone number, leaving the bare
// E.164-ish form used for reply-ack matching.
func NormalizePhone(input string) (string, error) {
	if input == "" {
		return "", errors.New("phone number cannot be empty")
	}

	number := strings.TrimSpace(input)

	// Provider channel prefix, e.g. "whatsapp:+15551234567"
	if idx := strings.Index(number, ":"); idx != -1 {
		number = number[idx+1:]
	}

	var b strings.Builder
	digits := 0
	for i, r := range number {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting noise
		default:
			return "", errors.New("invalid character in phone number")
		}
	}

	if digits == 0 {
		return "", errors.New("no digits in phone number")
	}

	return b.String(), nil
}
