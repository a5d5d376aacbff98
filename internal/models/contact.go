package models

import "gorm.io/gorm"

// Contact is an escalation recipient (dispatcher, fleet manager, emergency
// line) that is not necessarily a login user.
type Contact struct {
	gorm.Model

	CompanyID uint   `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	Phone     string `gorm:"not null;index"`
	Email     string
	Role      string // "dispatcher", "manager", "emergency"

	// Relationships
	Company Company `gorm:"foreignKey:CompanyID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
