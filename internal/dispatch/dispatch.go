package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/metrics"
	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sendTimeout = 30 * time.Second

// Sender is the transport boundary. The real SMS/WhatsApp/voice provider
// client lives outside this repository; anything implementing Sender can be
// plugged in.
type Sender interface {
	SendSMS(ctx context.Context, to, body string) (sid string, err error)
	SendWhatsApp(ctx context.Context, to, body string) (sid string, err error)
	PlaceCall(ctx context.Context, to string, alertID uint) (sid string, err error)
	SendEmail(ctx context.Context, to, subject, body string) (sid string, err error)
}

// EmergencyDispatcher forwards a confirmed IVR ack to emergency/monitoring.
// External collaborator; only the hook is defined here.
type EmergencyDispatcher interface {
	DispatchEmergency(ctx context.Context, alert models.Alert, ack models.NotificationAck) error
}

// Tier is one row of a company's escalation matrix.
type Tier struct {
	Level      int      `json:"level"`
	ContactIDs []uint   `json:"contact_ids"`
	Channels   []string `json:"channels"`
}

// Dispatcher creates notification attempts for an alert's escalation tier
// and hands them to the Sender. Sends are fire-and-forget relative to the
// caller; delivery outcomes flow back through provider callbacks.
type Dispatcher struct {
	db     *gorm.DB
	events *events.Log
	sender Sender
	logger *zap.Logger
}

func NewDispatcher(db *gorm.DB, eventLog *events.Log, sender Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{db: db, events: eventLog, sender: sender, logger: logger}
}

// ParseMatrix decodes a company's escalation matrix. A nil or empty matrix
// yields no tiers.
func ParseMatrix(raw []byte) ([]Tier, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var tiers []Tier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, fmt.Errorf("parse escalation matrix: %w", err)
	}

	return tiers, nil
}

// TierForLevel picks the matrix tier for an escalation level, clamping to
// the nearest configured tier on both ends: levels below the first tier
// (initial dispatch uses level 0 against a 1-based matrix) select the first
// tier, levels past the matrix select the last.
func TierForLevel(tiers []Tier, level int) (Tier, bool) {
	if len(tiers) == 0 {
		return Tier{}, false
	}

	for _, tier := range tiers {
		if tier.Level == level {
			return tier, true
		}
	}

	if level < tiers[0].Level {
		return tiers[0], true
	}

	return tiers[len(tiers)-1], true
}

// NotifyTier dispatches notifications for the alert to the matrix tier that
// matches level. The actual sends run in the background; the call returns
// once the batch is enqueued.
func (d *Dispatcher) NotifyTier(company models.Company, alert models.Alert, level int) error {
	tiers, err := ParseMatrix(company.EscalationMatrix)
	if err != nil {
		return err
	}

	tier, ok := TierForLevel(tiers, level)
	if !ok {
		d.logger.Warn("No escalation matrix configured, skipping dispatch",
			zap.Uint("company_id", company.ID),
			zap.Uint("alert_id", alert.ID),
		)
		return nil
	}

	var contacts []models.Contact
	if err := d.db.Where("company_id = ? AND id IN ?", company.ID, tier.ContactIDs).Find(&contacts).Error; err != nil {
		return fmt.Errorf("load tier contacts: %w", err)
	}

	correlationID := uuid.New().String()

	go d.sendBatch(alert, contacts, tier.Channels, correlationID)

	return nil
}

func (d *Dispatcher) sendBatch(alert models.Alert, contacts []models.Contact, channels []string, correlationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	body := notificationBody(alert)

	for _, contact := range contacts {
		for _, channel := range channels {
			sid, sendErr := d.send(ctx, channel, contact, alert, body)

			result := models.NotificationResult{
				AlertID:       alert.ID,
				CompanyID:     alert.CompanyID,
				Channel:       channel,
				ToNumber:      contact.Phone,
				ProviderSID:   sid,
				Success:       sendErr == nil,
				StatusCurrent: types.DeliveryQueued,
			}

			if sendErr != nil {
				message := sendErr.Error()
				result.StatusCurrent = types.DeliveryFailed
				result.ErrorMessage = &message
				d.logger.Error("Notification send failed",
					zap.Uint("alert_id", alert.ID),
					zap.String("channel", channel),
					zap.Error(sendErr),
				)
			}

			if err := d.db.Create(&result).Error; err != nil {
				d.logger.Error("Failed to record notification result",
					zap.Uint("alert_id", alert.ID),
					zap.Error(err),
				)
				continue
			}

			metrics.NotificationsSentTotal.WithLabelValues(channel).Inc()

			if _, err := d.events.Emit(alert.CompanyID, events.EntityNotification, result.ID, events.EventNotificationSent, map[string]interface{}{
				"alert_id": alert.ID,
				"channel":  channel,
				"to":       contact.Phone,
				"success":  sendErr == nil,
			}, events.WithCorrelation(correlationID), events.WithSystemActor()); err != nil {
				d.logger.Error("Failed to emit notification.sent event", zap.Error(err))
			}
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, channel string, contact models.Contact, alert models.Alert, body string) (string, error) {
	switch channel {
	case types.ChannelSMS:
		return d.sender.SendSMS(ctx, contact.Phone, body)
	case types.ChannelWhatsApp:
		return d.sender.SendWhatsApp(ctx, contact.Phone, body)
	case types.ChannelCall:
		return d.sender.PlaceCall(ctx, contact.Phone, alert.ID)
	case types.ChannelEmail:
		return d.sender.SendEmail(ctx, contact.Email, alert.Title, body)
	default:
		return "", fmt.Errorf("unsupported channel %q", channel)
	}
}

func notificationBody(alert models.Alert) string {
	return fmt.Sprintf("[%s] %s - reply to acknowledge alert #%d", alert.Severity, alert.Title, alert.ID)
}
