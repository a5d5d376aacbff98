package acks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/attention"
	"github.com/fleetwatch-dev/fleetwatch/internal/dispatch"
	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/flags"
	"github.com/fleetwatch-dev/fleetwatch/internal/metrics"
	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/fleetwatch-dev/fleetwatch/internal/utils"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// replyMatchWindow bounds how old a notification may be and still claim an
// inbound reply.
const replyMatchWindow = 24 * time.Hour

// ErrAlertNotFound mirrors the engine's sentinel for handler convenience.
var ErrAlertNotFound = attention.ErrAlertNotFound

// Correlator turns three channels of human response (UI click, IVR keypress,
// inbound reply) into normalized NotificationAck records. Recording is
// always-on; the attention state machine transition is feature-gated here at
// the call site so the engine's own contract stays unconditional.
type Correlator struct {
	db        *gorm.DB
	events    *events.Log
	flags     *flags.Service
	engine    *attention.Engine
	emergency dispatch.EmergencyDispatcher
	logger    *zap.Logger
}

func NewCorrelator(db *gorm.DB, eventLog *events.Log, flagSvc *flags.Service, engine *attention.Engine, emergency dispatch.EmergencyDispatcher, logger *zap.Logger) *Correlator {
	return &Correlator{
		db:        db,
		events:    eventLog,
		flags:     flagSvc,
		engine:    engine,
		emergency: emergency,
		logger:    logger,
	}
}

// Result is what a recording operation hands back to its caller.
type Result struct {
	Ack            models.NotificationAck
	Created        bool
	AttentionState string
}

// RecordUIAck records an authenticated operator acknowledgement. Idempotent
// per (alert, user): a repeat returns the existing row unchanged, in the
// same shape as a fresh one.
func (c *Correlator) RecordUIAck(ctx context.Context, alertID, companyID, userID uint, payload map[string]interface{}) (*Result, error) {
	var alert models.Alert
	if err := c.db.Where("id = ? AND company_id = ?", alertID, companyID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}

	var existing models.NotificationAck
	err := c.db.Where("alert_id = ? AND ack_type = ? AND ack_by_user_id = ?", alertID, types.AckTypeUI, userID).
		First(&existing).Error
	if err == nil {
		return &Result{Ack: existing, Created: false, AttentionState: alert.AttentionState}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ack := models.NotificationAck{
		AlertID:     alertID,
		CompanyID:   companyID,
		AckType:     types.AckTypeUI,
		AckByUserID: &userID,
	}
	created, err := c.record(&ack, payload, attention.Actor{Type: "user", ID: userID}, true)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost a concurrent-request race after the lookup; the unique
		// index held and the winner's row is the one to return.
		if err := c.db.Where("alert_id = ? AND ack_type = ? AND ack_by_user_id = ?", alertID, types.AckTypeUI, userID).
			First(&existing).Error; err != nil {
			return nil, err
		}
		return &Result{Ack: existing, Created: false, AttentionState: alert.AttentionState}, nil
	}

	state, err := c.forwardToEngine(ctx, alertID, companyID, attention.Actor{Type: "user", ID: userID})
	if err != nil {
		return nil, err
	}
	if state == "" {
		state = alert.AttentionState
	}

	return &Result{Ack: ack, Created: true, AttentionState: state}, nil
}

// RecordIVRAck records a voice keypress response. Digit 1 confirms: the ack
// additionally hands the alert to the emergency dispatcher and forwards to
// the attention engine. Digit 2 is a deny: recorded as a fresh row with no
// side effects. Digits outside the 1/2 vocabulary are logged and dropped.
// Repeated keypresses on the same call append fresh rows; the
// double-dispatch window this leaves open is a known gap, not a dedupe rule
// waiting to be written.
func (c *Correlator) RecordIVRAck(ctx context.Context, alertID uint, callSID, digit string) (*Result, error) {
	var alert models.Alert
	if err := c.db.Where("id = ?", alertID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}

	if digit != "1" && digit != "2" {
		c.logger.Info("IVR response outside keypress vocabulary, not recorded",
			zap.Uint("alert_id", alertID),
			zap.String("digit", digit),
		)
		return nil, nil
	}

	confirmed := digit == "1"

	ack := models.NotificationAck{
		AlertID:   alertID,
		CompanyID: alert.CompanyID,
		AckType:   types.AckTypeIVR,
	}
	payload := map[string]interface{}{
		"call_sid":  callSID,
		"digit":     digit,
		"confirmed": confirmed,
	}
	if _, err := c.record(&ack, payload, attention.Actor{Type: "provider"}, false); err != nil {
		return nil, err
	}

	if !confirmed {
		return &Result{Ack: ack, Created: true, AttentionState: alert.AttentionState}, nil
	}

	if c.emergency != nil {
		if err := c.emergency.DispatchEmergency(ctx, alert, ack); err != nil {
			// The ack stands even when the downstream dispatch fails.
			c.logger.Error("Emergency dispatch failed",
				zap.Uint("alert_id", alertID),
				zap.Error(err),
			)
		}
	}

	state, err := c.forwardToEngine(ctx, alertID, alert.CompanyID, attention.Actor{Type: "provider"})
	if err != nil {
		return nil, err
	}
	if state == "" {
		state = alert.AttentionState
	}

	return &Result{Ack: ack, Created: true, AttentionState: state}, nil
}

// RecordReplyAck correlates an inbound SMS/WhatsApp message with the most
// recent successful notification to that number within the match window. No
// match means no ack: not every inbound text is a reply to a notification,
// so the message is dropped without error.
func (c *Correlator) RecordReplyAck(ctx context.Context, from, body string) (*Result, error) {
	number, err := utils.NormalizePhone(from)
	if err != nil {
		c.logger.Info("Unparseable inbound sender, dropped", zap.String("from", from))
		return nil, nil
	}

	cutoff := time.Now().UTC().Add(-replyMatchWindow)

	var result models.NotificationResult
	err = c.db.
		Where("to_number LIKE ? AND success = ? AND created_at > ?", "%"+number+"%", true, cutoff).
		Order("created_at DESC").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logger.Info("Inbound message matched no notification, dropped",
				zap.String("from", number),
			)
			return nil, nil
		}
		return nil, err
	}

	ack := models.NotificationAck{
		AlertID:              result.AlertID,
		NotificationResultID: &result.ID,
		CompanyID:            result.CompanyID,
		AckType:              types.AckTypeReply,
	}
	payload := map[string]interface{}{
		"from": number,
		"body": body,
	}
	if _, err := c.record(&ack, payload, attention.Actor{Type: "provider"}, false); err != nil {
		return nil, err
	}

	state, err := c.forwardToEngine(ctx, result.AlertID, result.CompanyID, attention.Actor{Type: "provider"})
	if err != nil {
		return nil, err
	}

	return &Result{Ack: ack, Created: true, AttentionState: state}, nil
}

// record persists the ack and appends the notification.acked event to the
// alert's timeline inside one transaction. With onConflictIgnore the insert
// yields to an existing row on the unique (alert, type, user) index and
// reports created=false; the event and metric are only produced for rows
// actually inserted.
func (c *Correlator) record(ack *models.NotificationAck, payload map[string]interface{}, actor attention.Actor, onConflictIgnore bool) (bool, error) {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return false, fmt.Errorf("marshal ack payload: %w", err)
		}
		ack.AckPayload = datatypes.JSON(raw)
	}

	created := true
	err := c.db.Transaction(func(tx *gorm.DB) error {
		insert := tx
		if onConflictIgnore {
			insert = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "alert_id"}, {Name: "ack_type"}, {Name: "ack_by_user_id"}},
				DoNothing: true,
			})
		}

		result := insert.Create(ack)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			created = false
			return nil
		}

		opts := []events.EmitOption{events.WithCorrelation(fmt.Sprintf("ack:%d", ack.ID))}
		if actor.Type == "user" {
			opts = append(opts, events.WithActor("user", actor.ID))
		} else {
			opts = append(opts, events.WithSystemActor())
		}

		_, err := c.events.Tx(tx).Emit(ack.CompanyID, events.EntityAlert, ack.AlertID, events.EventNotificationAcked, map[string]interface{}{
			"ack_id":   ack.ID,
			"ack_type": ack.AckType,
		}, opts...)
		return err
	})
	if err != nil {
		return false, err
	}

	if created {
		metrics.AcksTotal.WithLabelValues(ack.AckType).Inc()
	}
	return created, nil
}

// forwardToEngine applies the attention transition when the company has the
// engine enabled. Ack recording never depends on this succeeding.
func (c *Correlator) forwardToEngine(ctx context.Context, alertID, companyID uint, actor attention.Actor) (string, error) {
	active, err := c.flags.Active(ctx, companyID, types.FlagAttentionEngine)
	if err != nil {
		c.logger.Warn("Feature flag check failed, skipping attention transition",
			zap.Uint("company_id", companyID),
			zap.Error(err),
		)
		return "", nil
	}
	if !active {
		return "", nil
	}

	state, err := c.engine.Acknowledge(alertID, companyID, actor)
	if err != nil {
		// The ack record already stands; the transition failure is
		// surfaced through logs, not the caller's response.
		c.logger.Error("Attention acknowledge failed after ack recording",
			zap.Uint("alert_id", alertID),
			zap.Error(err),
		)
		return "", nil
	}

	return state, nil
}
