package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/metrics"
	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Kind selects the provider vocabulary to normalize against.
type Kind string

const (
	KindMessage Kind = "message"
	KindCall    Kind = "call"
)

// Tracker normalizes heterogeneous provider callbacks into the status
// lattice and keeps NotificationResult.StatusCurrent consistent with the
// latest delivery event.
type Tracker struct {
	db     *gorm.DB
	events *events.Log
	logger *zap.Logger
}

func NewTracker(db *gorm.DB, eventLog *events.Log, logger *zap.Logger) *Tracker {
	return &Tracker{db: db, events: eventLog, logger: logger}
}

// Callback carries the fields of one provider status callback.
type Callback struct {
	ProviderSID  string
	RawStatus    string
	ErrorCode    *string
	ErrorMessage *string
	RawPayload   map[string]string
}

// RecordDeliveryEvent appends a delivery event for the callback and advances
// the owning result's StatusCurrent. Unknown provider sids are logged and
// dropped with a nil error: the provider must receive a 2xx either way so it
// does not retry-storm. Duplicate callbacks for the same sid/status append
// additional events on purpose; only StatusCurrent writes are idempotent.
func (t *Tracker) RecordDeliveryEvent(kind Kind, cb Callback) error {
	if cb.ProviderSID == "" {
		t.logger.Warn("Delivery callback without provider sid dropped")
		metrics.UnmatchedCallbacksTotal.Inc()
		return nil
	}

	var result models.NotificationResult
	if err := t.db.Where("provider_sid = ?", cb.ProviderSID).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			t.logger.Warn("Delivery callback for unknown provider sid dropped",
				zap.String("provider_sid", cb.ProviderSID),
				zap.String("raw_status", cb.RawStatus),
			)
			metrics.UnmatchedCallbacksTotal.Inc()
			return nil
		}
		return fmt.Errorf("lookup notification result: %w", err)
	}

	normalized := cb.RawStatus
	switch kind {
	case KindCall:
		normalized = NormalizeCallStatus(cb.RawStatus)
	default:
		normalized = NormalizeMessageStatus(cb.RawStatus)
	}

	raw, err := rawToJSON(cb.RawPayload)
	if err != nil {
		return fmt.Errorf("encode raw callback: %w", err)
	}

	err = t.db.Transaction(func(tx *gorm.DB) error {
		event := models.NotificationDeliveryEvent{
			NotificationResultID: result.ID,
			ProviderSID:          cb.ProviderSID,
			Status:               normalized,
			ErrorCode:            cb.ErrorCode,
			ErrorMessage:         cb.ErrorMessage,
			RawCallback:          raw,
			ReceivedAt:           time.Now().UTC(),
		}

		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		// Latest callback wins. Out-of-order provider callbacks are not
		// reordered by provider timestamp; this is a known fidelity gap.
		updates := map[string]interface{}{
			"status_current": normalized,
		}
		switch normalized {
		case types.DeliverySent, types.DeliveryDelivered, types.DeliveryRead:
			updates["success"] = true
		case types.DeliveryFailed, types.DeliveryUndelivered:
			updates["success"] = false
		}
		if cb.ErrorCode != nil {
			updates["error_code"] = cb.ErrorCode
		}
		if cb.ErrorMessage != nil {
			updates["error_message"] = cb.ErrorMessage
		}

		if err := tx.Model(&models.NotificationResult{}).
			Where("id = ?", result.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		if eventType, significant := domainSignificant(normalized); significant {
			correlation := fmt.Sprintf("alert:%d", result.AlertID)
			if _, err := t.events.Tx(tx).Emit(result.CompanyID, events.EntityNotification, result.ID, eventType, map[string]interface{}{
				"alert_id":     result.AlertID,
				"channel":      result.Channel,
				"provider_sid": cb.ProviderSID,
				"status":       normalized,
			}, events.WithCorrelation(correlation), events.WithSystemActor()); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return err
	}

	metrics.DeliveryEventsTotal.WithLabelValues(normalized).Inc()
	return nil
}

func rawToJSON(payload map[string]string) (datatypes.JSON, error) {
	if payload == nil {
		return datatypes.JSON([]byte("{}")), nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return datatypes.JSON(raw), nil
}
