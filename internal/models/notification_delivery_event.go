package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationDeliveryEvent is one raw provider callback, preserved verbatim
// for audit. Append-only; duplicates for the same sid/status are kept.
type NotificationDeliveryEvent struct {
	BaseModel

	NotificationResultID uint   `gorm:"not null;index"`
	ProviderSID          string `gorm:"not null;index"`
	Status               string `gorm:"not null"` // normalized status
	ErrorCode            *string
	ErrorMessage         *string
	RawCallback          datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt           time.Time      `gorm:"not null"`

	// Relationships
	NotificationResult NotificationResult `gorm:"foreignKey:NotificationResultID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
