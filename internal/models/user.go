package models

import "gorm.io/gorm"

type User struct {
	gorm.Model

	CompanyID    uint   `gorm:"not null;index"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;default:user"` // "user", "admin", "super_admin"

	// Relationships
	Company  Company        `gorm:"foreignKey:CompanyID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Comments []AlertComment `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
