package models

// NotificationResult is one outbound notification attempt tied to an alert.
// Created at send time by the dispatcher; StatusCurrent is updated
// exclusively by delivery-event normalization.
type NotificationResult struct {
	BaseModel

	AlertID       uint   `gorm:"not null;index"`
	CompanyID     uint   `gorm:"not null;index"`
	Channel       string `gorm:"not null"` // "sms", "whatsapp", "call", "email"
	ToNumber      string `gorm:"index"`
	ProviderSID   string `gorm:"index"`
	Success       bool   `gorm:"default:false"`
	StatusCurrent string `gorm:"not null;default:queued"`
	ErrorCode     *string
	ErrorMessage  *string

	// Relationships
	Alert          Alert                       `gorm:"foreignKey:AlertID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	DeliveryEvents []NotificationDeliveryEvent `gorm:"foreignKey:NotificationResultID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
