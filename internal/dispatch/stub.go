package dispatch

import (
	"context"
	"fmt"

	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogSender is the default Sender used when no provider client is wired. It
// logs the attempt and fabricates a local sid so the delivery tracker still
// has something to correlate against in development.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	return s.record("sms", to, body)
}

func (s *LogSender) SendWhatsApp(ctx context.Context, to, body string) (string, error) {
	return s.record("whatsapp", to, body)
}

func (s *LogSender) PlaceCall(ctx context.Context, to string, alertID uint) (string, error) {
	return s.record("call", to, fmt.Sprintf("alert %d", alertID))
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	return s.record("email", to, subject)
}

func (s *LogSender) record(channel, to, body string) (string, error) {
	sid := "local-" + uuid.New().String()
	s.logger.Info("Notification send (stub)",
		zap.String("channel", channel),
		zap.String("to", to),
		zap.String("sid", sid),
		zap.String("body", body),
	)
	return sid, nil
}

// LogEmergencyDispatcher is the default emergency hook; it only logs.
type LogEmergencyDispatcher struct {
	logger *zap.Logger
}

func NewLogEmergencyDispatcher(logger *zap.Logger) *LogEmergencyDispatcher {
	return &LogEmergencyDispatcher{logger: logger}
}

func (d *LogEmergencyDispatcher) DispatchEmergency(ctx context.Context, alert models.Alert, ack models.NotificationAck) error {
	d.logger.Warn("Emergency dispatch requested (stub)",
		zap.Uint("alert_id", alert.ID),
		zap.Uint("ack_id", ack.ID),
	)
	return nil
}
