package models

import (
	"time"

	"gorm.io/datatypes"
)

// Alert is one detected safety event under review. Rows are never deleted;
// closure is a state, not a row removal.
type Alert struct {
	BaseModel

	CompanyID uint    `gorm:"not null;index"`
	DedupeKey *string `gorm:"index"` // collapses duplicate detections
	Title     string  `gorm:"not null"`
	Description string

	// Classification
	Severity       string   `gorm:"not null;default:info"`    // "info", "warning", "critical"
	RiskEscalation string   `gorm:"not null;default:monitor"` // "monitor", "warn", "call", "emergency"
	Verdict        *string  // set by the AI pipeline
	Likelihood     *float64 // set by the AI pipeline
	ProactiveFlag  bool     `gorm:"default:false"`
	AIAssessment   datatypes.JSON `gorm:"type:jsonb"`
	AIActions      datatypes.JSON `gorm:"type:jsonb"`

	// Review state
	HumanStatus string `gorm:"not null;default:pending"`
	AIStatus    string `gorm:"not null;default:pending"`

	// Attention state. Exactly one of OwnerUserID/OwnerContactID may be set.
	AttentionState  string `gorm:"not null;default:none;index"`
	OwnerUserID     *uint
	OwnerContactID  *uint
	EscalationLevel int `gorm:"not null;default:0"`
	EscalationCount int `gorm:"not null;default:0"`

	// SLA timestamps
	AckStatus    string `gorm:"not null;default:pending"`
	AckDueAt     *time.Time `gorm:"index"`
	AckedAt      *time.Time
	ResolveDueAt *time.Time `gorm:"index"`
	ResolvedAt   *time.Time

	// Relationships
	Company       Company              `gorm:"foreignKey:CompanyID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	Notifications []NotificationResult `gorm:"foreignKey:AlertID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Acks          []NotificationAck    `gorm:"foreignKey:AlertID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Comments      []AlertComment       `gorm:"foreignKey:AlertID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
