package models

import "gorm.io/gorm"

// CompanyFeature gates optional engine behavior per tenant.
type CompanyFeature struct {
	gorm.Model

	CompanyID uint   `gorm:"not null;uniqueIndex:idx_company_flag"`
	Flag      string `gorm:"not null;uniqueIndex:idx_company_flag"`
	Enabled   bool   `gorm:"default:false"`

	// Relationships
	Company Company `gorm:"foreignKey:CompanyID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
