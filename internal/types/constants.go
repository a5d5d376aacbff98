package types

import (
	"os"
	"strings"
)

const ContextUserKey = "user"

// Alert severity, least severe first.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Risk escalation tiers assigned by the AI pipeline.
const (
	RiskMonitor   = "monitor"
	RiskWarn      = "warn"
	RiskCall      = "call"
	RiskEmergency = "emergency"
)

// Human review status.
const (
	HumanStatusPending       = "pending"
	HumanStatusReviewed      = "reviewed"
	HumanStatusFlagged       = "flagged"
	HumanStatusResolved      = "resolved"
	HumanStatusFalsePositive = "false_positive"
)

// AI processing status.
const (
	AIStatusPending       = "pending"
	AIStatusProcessing    = "processing"
	AIStatusInvestigating = "investigating"
	AIStatusCompleted     = "completed"
	AIStatusFailed        = "failed"
)

// Attention lifecycle states.
const (
	AttentionNone      = "none"
	AttentionOpen      = "open"
	AttentionAcked     = "acked"
	AttentionEscalated = "escalated"
	AttentionClosed    = "closed"
)

// Ack status on the alert row.
const (
	AckStatusPending = "pending"
	AckStatusAcked   = "acked"
)

// Notification channels.
const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelCall     = "call"
	ChannelEmail    = "email"
)

// Normalized delivery statuses.
const (
	DeliveryQueued      = "queued"
	DeliveryAccepted    = "accepted"
	DeliverySending     = "sending"
	DeliverySent        = "sent"
	DeliveryDelivered   = "delivered"
	DeliveryRead        = "read"
	DeliveryFailed      = "failed"
	DeliveryUndelivered = "undelivered"
)

// Acknowledgement channels.
const (
	AckTypeUI    = "ui"
	AckTypeIVR   = "ivr"
	AckTypeReply = "reply"
)

// User roles.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Per-company feature flags.
const (
	FlagNotificationsV2 = "notifications-v2"
	FlagAttentionEngine = "attention-engine-v1"
)

// Default SLA windows used when a company has none configured.
const (
	DefaultAckSLAMinutes     = 15
	DefaultResolveSLAMinutes = 60
)

var (
	// Default allowed origins for development
	defaultOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}

	AllowedOrigins = initAllowedOrigins()
)

func initAllowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		envOrigins := strings.Split(allowedOrigins, ",")
		for _, origin := range envOrigins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
