package models

import (
	"time"

	"gorm.io/datatypes"
)

// DomainEvent is an append-only audit record. Never mutated or deleted;
// queried chronologically per entity. The per-alert activity timeline is a
// filtered projection of this table.
type DomainEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	CompanyID     uint   `gorm:"not null;index"`
	EntityType    string `gorm:"not null;index:idx_events_entity"`
	EntityID      uint   `gorm:"not null;index:idx_events_entity"`
	EventType     string `gorm:"not null"`
	Payload       datatypes.JSON `gorm:"type:jsonb"`
	ActorType     *string // "user", "system", "provider"
	ActorID       *uint
	CorrelationID *string    `gorm:"index"`
	OccurredAt    time.Time  `gorm:"not null;index"`
}
