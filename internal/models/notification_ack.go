package models

import "gorm.io/datatypes"

// NotificationAck is one acknowledgement of an alert via a specific channel.
// For AckType "ui" at most one row exists per (alert, user), enforced by the
// unique index; IVR and reply acks carry a NULL AckByUserID, so under
// postgres NULL semantics they always append.
type NotificationAck struct {
	BaseModel

	AlertID              uint  `gorm:"not null;uniqueIndex:idx_ack_alert_type_user"`
	NotificationResultID *uint `gorm:"index"` // nil for IVR/UI acks with no linked result
	CompanyID            uint  `gorm:"not null;index"`
	AckType              string `gorm:"not null;uniqueIndex:idx_ack_alert_type_user"` // "ui", "ivr", "reply"
	AckByUserID          *uint  `gorm:"uniqueIndex:idx_ack_alert_type_user"`
	AckPayload           datatypes.JSON `gorm:"type:jsonb"`

	// Relationships
	Alert Alert `gorm:"foreignKey:AlertID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
