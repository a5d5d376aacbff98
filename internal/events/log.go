package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entity types recorded in the log.
const (
	EntityAlert        = "alert"
	EntityNotification = "notification"
)

// Event types emitted by the engine.
const (
	EventAlertCreated          = "alert.created"
	EventAlertAttentionOpened  = "alert.attention_opened"
	EventAlertAssigned         = "alert.assigned"
	EventAlertAcked            = "alert.acked"
	EventAlertEscalated        = "alert.escalated"
	EventAlertAttentionClosed  = "alert.attention_closed"
	EventAlertStatusChanged    = "alert.status_changed"
	EventAlertCommented        = "alert.commented"
	EventAlertReprocessed      = "alert.reprocessed"
	EventNotificationSent      = "notification.sent"
	EventNotificationDelivered = "notification.delivered"
	EventNotificationRead      = "notification.read"
	EventNotificationFailed    = "notification.failed"
	EventNotificationAcked     = "notification.acked"
)

// DefaultQueryLimit caps chronological reads unless the caller asks for more.
const DefaultQueryLimit = 100

// Log is the append-only, per-company, per-entity event ledger. Records are
// never mutated or deleted.
type Log struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewLog(db *gorm.DB, logger *zap.Logger) *Log {
	return &Log{db: db, logger: logger}
}

// Tx returns a Log bound to the given transaction so event appends commit or
// roll back with the primary state change.
func (l *Log) Tx(tx *gorm.DB) *Log {
	return &Log{db: tx, logger: l.logger}
}

type emitOptions struct {
	actorType     *string
	actorID       *uint
	correlationID *string
}

type EmitOption func(*emitOptions)

func WithActor(actorType string, actorID uint) EmitOption {
	return func(o *emitOptions) {
		o.actorType = &actorType
		o.actorID = &actorID
	}
}

func WithSystemActor() EmitOption {
	return func(o *emitOptions) {
		actorType := "system"
		o.actorType = &actorType
	}
}

func WithCorrelation(id string) EmitOption {
	return func(o *emitOptions) {
		o.correlationID = &id
	}
}

// Emit appends one immutable record with a server-assigned OccurredAt.
// Storage failures are returned, not swallowed; callers treat emission as
// observable but non-fatal to the primary operation unless they run it
// inside the same transaction.
func (l *Log) Emit(companyID uint, entityType string, entityID uint, eventType string, payload map[string]interface{}, opts ...EmitOption) (*models.DomainEvent, error) {
	var options emitOptions
	for _, opt := range opts {
		opt(&options)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	event := models.DomainEvent{
		CompanyID:     companyID,
		EntityType:    entityType,
		EntityID:      entityID,
		EventType:     eventType,
		Payload:       raw,
		ActorType:     options.actorType,
		ActorID:       options.actorID,
		CorrelationID: options.correlationID,
		OccurredAt:    time.Now().UTC(),
	}

	if err := l.db.Create(&event).Error; err != nil {
		l.logger.Error("Failed to append domain event",
			zap.String("event_type", eventType),
			zap.Uint("entity_id", entityID),
			zap.Error(err),
		)
		return nil, err
	}

	return &event, nil
}

// ForEntity returns the entity's events in stable chronological order.
// Previously returned events never reorder on subsequent queries.
func (l *Log) ForEntity(entityType string, entityID uint, limit int) ([]models.DomainEvent, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var events []models.DomainEvent
	err := l.db.
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("occurred_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error

	return events, err
}

// ForCompany returns the company's events in stable chronological order.
func (l *Log) ForCompany(companyID uint, limit int) ([]models.DomainEvent, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var events []models.DomainEvent
	err := l.db.
		Where("company_id = ?", companyID).
		Order("occurred_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error

	return events, err
}

// Activity is the per-alert timeline entry surfaced to the review UI. It is
// a projection of the alert's domain events, not a second table.
type Activity struct {
	ID         uint            `json:"id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	ActorType  *string         `json:"actor_type"`
	ActorID    *uint           `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Activities returns the alert's timeline, oldest first.
func (l *Log) Activities(alertID uint, limit int) ([]Activity, error) {
	events, err := l.ForEntity(EntityAlert, alertID, limit)
	if err != nil {
		return nil, err
	}

	activities := make([]Activity, 0, len(events))
	for _, event := range events {
		activities = append(activities, Activity{
			ID:         event.ID,
			EventType:  event.EventType,
			Payload:    json.RawMessage(event.Payload),
			ActorType:  event.ActorType,
			ActorID:    event.ActorID,
			OccurredAt: event.OccurredAt,
		})
	}

	return activities, nil
}
