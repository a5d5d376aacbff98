package models

import "gorm.io/gorm"

type AlertComment struct {
	gorm.Model

	AlertID uint   `gorm:"not null;index"`
	UserID  uint   `gorm:"not null;index"`
	Body    string `gorm:"not null"`

	// Relationships
	Alert Alert `gorm:"foreignKey:AlertID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	User  User  `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
