package delivery

import (
	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
)

// Message statuses already arrive in the normalized vocabulary; anything the
// provider invents beyond it passes through unchanged rather than being
// dropped, so new provider states stay visible in the audit trail.
var messageStatuses = map[string]string{
	"queued":      types.DeliveryQueued,
	"accepted":    types.DeliveryAccepted,
	"sending":     types.DeliverySending,
	"sent":        types.DeliverySent,
	"delivered":   types.DeliveryDelivered,
	"read":        types.DeliveryRead,
	"failed":      types.DeliveryFailed,
	"undelivered": types.DeliveryUndelivered,
}

// Call progress strings use a separate vocabulary and are folded into the
// message lattice before storage.
var callStatuses = map[string]string{
	"completed":   types.DeliveryDelivered,
	"busy":        types.DeliveryFailed,
	"no-answer":   types.DeliveryFailed,
	"canceled":    types.DeliveryFailed,
	"failed":      types.DeliveryFailed,
	"in-progress": types.DeliverySent,
	"ringing":     types.DeliverySent,
	"initiated":   types.DeliveryQueued,
	"queued":      types.DeliveryQueued,
}

// NormalizeMessageStatus maps a raw provider message status into the status
// lattice. Unrecognized statuses pass through unchanged.
func NormalizeMessageStatus(raw string) string {
	if normalized, ok := messageStatuses[raw]; ok {
		return normalized
	}
	return raw
}

// NormalizeCallStatus maps a raw provider call status into the status
// lattice. Unrecognized statuses pass through unchanged.
func NormalizeCallStatus(raw string) string {
	if normalized, ok := callStatuses[raw]; ok {
		return normalized
	}
	return raw
}

// IsTerminalFailure reports whether a normalized status ends the attempt.
func IsTerminalFailure(status string) bool {
	return status == types.DeliveryFailed || status == types.DeliveryUndelivered
}

// domainSignificant marks normalized statuses that warrant a domain event.
func domainSignificant(status string) (eventType string, ok bool) {
	switch status {
	case types.DeliveryDelivered:
		return events.EventNotificationDelivered, true
	case types.DeliveryRead:
		return events.EventNotificationRead, true
	case types.DeliveryFailed, types.DeliveryUndelivered:
		return events.EventNotificationFailed, true
	}
	return "", false
}
