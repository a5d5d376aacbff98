package attention

import (
	"errors"
	"fmt"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/dispatch"
	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/metrics"
	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/fleetwatch-dev/fleetwatch/internal/services"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrAlertClosed is returned for transitions that are invalid on a
	// closed alert (assignment). Idempotent transitions (acknowledge,
	// close) never return it.
	ErrAlertClosed = errors.New("alert attention is closed")

	// ErrAlertNotFound is returned when the alert does not exist in the
	// caller's company.
	ErrAlertNotFound = errors.New("alert not found")
)

// Owner is the tagged union of alert ownership: a user, a contact, or
// nobody. At most one kind is ever set, structurally.
type Owner struct {
	Kind string // "user", "contact", "none"
	ID   uint
}

const (
	OwnerNone    = "none"
	OwnerUser    = "user"
	OwnerContact = "contact"
)

func UserOwner(id uint) Owner    { return Owner{Kind: OwnerUser, ID: id} }
func ContactOwner(id uint) Owner { return Owner{Kind: OwnerContact, ID: id} }

// Actor identifies who drove a transition, for the audit log.
type Actor struct {
	Type string // "user", "system", "provider"
	ID   uint   // zero for system/provider actors
}

func (a Actor) emitOption() events.EmitOption {
	if a.Type == "" || a.Type == "system" {
		return events.WithSystemActor()
	}
	return events.WithActor(a.Type, a.ID)
}

// Engine owns the alert attention lifecycle:
// open -> acked/escalated -> closed. Every transition is a guarded
// conditional UPDATE so concurrent writers (UI ack, IVR callback, scheduler)
// cannot both win from the same stale read.
type Engine struct {
	db         *gorm.DB
	events     *events.Log
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

func NewEngine(db *gorm.DB, eventLog *events.Log, dispatcher *dispatch.Dispatcher, logger *zap.Logger) *Engine {
	return &Engine{db: db, events: eventLog, dispatcher: dispatcher, logger: logger}
}

// AckSLA returns the company's ack window, falling back to the system
// default when unconfigured.
func AckSLA(company models.Company) time.Duration {
	minutes := company.AckSLAMinutes
	if minutes <= 0 {
		minutes = types.DefaultAckSLAMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// ResolveSLA returns the company's resolve window, falling back to the
// system default when unconfigured.
func ResolveSLA(company models.Company) time.Duration {
	minutes := company.ResolveSLAMinutes
	if minutes <= 0 {
		minutes = types.DefaultResolveSLAMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// AckSLARemainingSeconds returns ack_due_at minus now, in seconds. Negative
// means the deadline is breached by that many seconds; callers must not
// expect clamping. ok is false when no deadline is set.
func AckSLARemainingSeconds(alert models.Alert, now time.Time) (int64, bool) {
	if alert.AckDueAt == nil {
		return 0, false
	}
	return int64(alert.AckDueAt.Sub(now).Seconds()), true
}

// Initialize puts a freshly created alert under attention tracking: state
// becomes open and both SLA clocks start. Guarded so a second call (or an
// explicit re-queue racing creation) is a no-op.
func (e *Engine) Initialize(alert *models.Alert, company models.Company) error {
	now := time.Now().UTC()
	ackDue := now.Add(AckSLA(company))
	resolveDue := now.Add(ResolveSLA(company))

	return e.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Alert{}).
			Where("id = ? AND attention_state = ?", alert.ID, types.AttentionNone).
			Updates(map[string]interface{}{
				"attention_state": types.AttentionOpen,
				"ack_due_at":      ackDue,
				"resolve_due_at":  resolveDue,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		alert.AttentionState = types.AttentionOpen
		alert.AckDueAt = &ackDue
		alert.ResolveDueAt = &resolveDue

		_, err := e.events.Tx(tx).Emit(alert.CompanyID, events.EntityAlert, alert.ID, events.EventAlertAttentionOpened, map[string]interface{}{
			"ack_due_at":     ackDue.Format(time.RFC3339),
			"resolve_due_at": resolveDue.Format(time.RFC3339),
		}, events.WithSystemActor())
		return err
	})
}

// Acknowledge moves open|escalated -> acked. Idempotent: an already acked or
// closed alert is left untouched and its current state returned.
func (e *Engine) Acknowledge(alertID, companyID uint, actor Actor) (string, error) {
	var alert models.Alert
	if err := e.db.Where("id = ? AND company_id = ?", alertID, companyID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAlertNotFound
		}
		return "", err
	}

	if alert.AttentionState == types.AttentionAcked || alert.AttentionState == types.AttentionClosed {
		return alert.AttentionState, nil
	}

	now := time.Now().UTC()

	err := e.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Alert{}).
			Where("id = ? AND company_id = ? AND attention_state IN ?", alertID, companyID,
				[]string{types.AttentionOpen, types.AttentionEscalated}).
			Updates(map[string]interface{}{
				"attention_state": types.AttentionAcked,
				"acked_at":        now,
				"ack_status":      types.AckStatusAcked,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Lost a race to another acknowledger; nothing to record.
			return nil
		}

		alert.AttentionState = types.AttentionAcked

		_, err := e.events.Tx(tx).Emit(companyID, events.EntityAlert, alertID, events.EventAlertAcked, map[string]interface{}{
			"acked_at": now.Format(time.RFC3339),
		}, actor.emitOption())
		return err
	})
	if err != nil {
		return "", err
	}

	if alert.AttentionState != types.AttentionAcked {
		// Re-read after a lost race so the caller sees the winner's state.
		if err := e.db.Select("attention_state").Where("id = ?", alertID).First(&alert).Error; err != nil {
			return "", err
		}
	}

	return alert.AttentionState, nil
}

// AssignOwner sets exactly one of owner_user_id/owner_contact_id; setting
// one clears the other. Valid in any non-closed state; the attention state
// itself does not change.
func (e *Engine) AssignOwner(alertID, companyID uint, owner Owner, assignedBy uint) error {
	updates := map[string]interface{}{
		"owner_user_id":    nil,
		"owner_contact_id": nil,
	}

	switch owner.Kind {
	case OwnerUser:
		updates["owner_user_id"] = owner.ID
	case OwnerContact:
		updates["owner_contact_id"] = owner.ID
	case OwnerNone:
		// both cleared
	default:
		return fmt.Errorf("invalid owner kind %q", owner.Kind)
	}

	return e.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Alert{}).
			Where("id = ? AND company_id = ? AND attention_state <> ?", alertID, companyID, types.AttentionClosed).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Alert{}).
				Where("id = ? AND company_id = ?", alertID, companyID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrAlertNotFound
			}
			return ErrAlertClosed
		}

		_, err := e.events.Tx(tx).Emit(companyID, events.EntityAlert, alertID, events.EventAlertAssigned, map[string]interface{}{
			"owner_kind": owner.Kind,
			"owner_id":   owner.ID,
		}, events.WithActor("user", assignedBy))
		return err
	})
}

// Escalate advances open|acked|escalated one tier. The update is a
// compare-and-swap on the escalation level read by the caller, so two
// concurrent escalations from the same read increment exactly once; the
// loser becomes a no-op. A closed alert never escalates.
func (e *Engine) Escalate(alert models.Alert, company models.Company) error {
	if alert.AttentionState == types.AttentionClosed || alert.AttentionState == types.AttentionNone {
		return nil
	}

	now := time.Now().UTC()
	newLevel := alert.EscalationLevel + 1

	updates := map[string]interface{}{
		"attention_state":  types.AttentionEscalated,
		"escalation_level": newLevel,
		"escalation_count": alert.EscalationCount + 1,
	}

	// Re-arm the breached clock so one breach escalates once per window
	// rather than once per scheduler pass.
	if alert.AckedAt == nil {
		updates["ack_due_at"] = now.Add(AckSLA(company))
	} else {
		updates["resolve_due_at"] = now.Add(ResolveSLA(company))
	}

	var escalated bool
	err := e.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Alert{}).
			Where("id = ? AND attention_state IN ? AND escalation_level = ?",
				alert.ID,
				[]string{types.AttentionOpen, types.AttentionAcked, types.AttentionEscalated},
				alert.EscalationLevel).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		escalated = true

		_, err := e.events.Tx(tx).Emit(alert.CompanyID, events.EntityAlert, alert.ID, events.EventAlertEscalated, map[string]interface{}{
			"escalation_level": newLevel,
		}, events.WithSystemActor())
		return err
	})
	if err != nil {
		return err
	}
	if !escalated {
		return nil
	}

	metrics.EscalationsTotal.Inc()

	e.logger.Info("Alert escalated",
		zap.Uint("alert_id", alert.ID),
		zap.Int("escalation_level", newLevel),
	)

	if e.dispatcher != nil {
		if err := e.dispatcher.NotifyTier(company, alert, newLevel); err != nil {
			// Dispatch failure must not undo the escalation.
			e.logger.Error("Escalation dispatch failed",
				zap.Uint("alert_id", alert.ID),
				zap.Error(err),
			)
		}
	}

	go func() {
		if err := services.SendAlertEscalatedNotification(company, alert, newLevel); err != nil {
			e.logger.Warn("Ops webhook notification failed",
				zap.Uint("alert_id", alert.ID),
				zap.Error(err),
			)
		}
	}()

	return nil
}

// CloseAttention moves any non-closed state to closed and stamps
// resolved_at. Closing an already closed alert is a success no-op: the
// second caller gets closed=false and no second event is emitted.
func (e *Engine) CloseAttention(alertID, companyID uint, actor Actor, reason string) (bool, error) {
	now := time.Now().UTC()

	var closed bool
	err := e.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Alert{}).
			Where("id = ? AND company_id = ? AND attention_state <> ?", alertID, companyID, types.AttentionClosed).
			Updates(map[string]interface{}{
				"attention_state": types.AttentionClosed,
				"resolved_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Alert{}).
				Where("id = ? AND company_id = ?", alertID, companyID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrAlertNotFound
			}
			return nil
		}
		closed = true

		_, err := e.events.Tx(tx).Emit(companyID, events.EntityAlert, alertID, events.EventAlertAttentionClosed, map[string]interface{}{
			"reason":      reason,
			"resolved_at": now.Format(time.RFC3339),
		}, actor.emitOption())
		return err
	})
	if err != nil {
		return false, err
	}

	return closed, nil
}
