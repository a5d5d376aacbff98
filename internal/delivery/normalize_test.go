package delivery

import (
	"testing"

	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCallStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"completed", types.DeliveryDelivered},
		{"busy", types.DeliveryFailed},
		{"no-answer", types.DeliveryFailed},
		{"canceled", types.DeliveryFailed},
		{"failed", types.DeliveryFailed},
		{"in-progress", types.DeliverySent},
		{"ringing", types.DeliverySent},
		{"queued", types.DeliveryQueued},
		{"initiated", types.DeliveryQueued},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeCallStatus(tt.raw), "raw status %q", tt.raw)
	}
}

func TestNormalizeCallStatus_UnrecognizedPassesThrough(t *testing.T) {
	assert.Equal(t, "ringing-extended", NormalizeCallStatus("ringing-extended"))
	assert.Equal(t, "", NormalizeCallStatus(""))
}

func TestNormalizeMessageStatus(t *testing.T) {
	assert.Equal(t, types.DeliveryDelivered, NormalizeMessageStatus("delivered"))
	assert.Equal(t, types.DeliveryRead, NormalizeMessageStatus("read"))
	assert.Equal(t, types.DeliveryUndelivered, NormalizeMessageStatus("undelivered"))

	// Unknown provider vocabulary stays visible rather than being dropped.
	assert.Equal(t, "scheduled", NormalizeMessageStatus("scheduled"))
}

func TestIsTerminalFailure(t *testing.T) {
	assert.True(t, IsTerminalFailure(types.DeliveryFailed))
	assert.True(t, IsTerminalFailure(types.DeliveryUndelivered))
	assert.False(t, IsTerminalFailure(types.DeliveryDelivered))
	assert.False(t, IsTerminalFailure(types.DeliveryQueued))
}

func TestDomainSignificant(t *testing.T) {
	eventType, ok := domainSignificant(types.DeliveryDelivered)
	assert.True(t, ok)
	assert.Equal(t, "notification.delivered", eventType)

	eventType, ok = domainSignificant(types.DeliveryUndelivered)
	assert.True(t, ok)
	assert.Equal(t, "notification.failed", eventType)

	_, ok = domainSignificant(types.DeliveryQueued)
	assert.False(t, ok)
}
