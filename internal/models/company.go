package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Company struct {
	gorm.Model

	Name              string `gorm:"not null"`
	AckSLAMinutes     int    `gorm:"default:0"` // 0 = use system default
	ResolveSLAMinutes int    `gorm:"default:0"`
	SlackWebhook      string
	DiscordWebhook    string

	// Ordered escalation tiers: [{"level":1,"contact_ids":[..],"channels":["sms","call"]},...]
	EscalationMatrix datatypes.JSON `gorm:"type:jsonb"`

	// Relationships
	Users    []User           `gorm:"foreignKey:CompanyID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Contacts []Contact        `gorm:"foreignKey:CompanyID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Alerts   []Alert          `gorm:"foreignKey:CompanyID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Features []CompanyFeature `gorm:"foreignKey:CompanyID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
