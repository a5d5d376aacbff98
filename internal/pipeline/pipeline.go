package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// Reprocessor enqueues an alert for AI re-investigation. The investigation
// pipeline itself lives outside this repository; only the hand-off is
// modeled here.
type Reprocessor interface {
	EnqueueInvestigation(ctx context.Context, alertID uint) error
}

// LogReprocessor is the default stub used when no pipeline worker is wired.
type LogReprocessor struct {
	logger *zap.Logger
}

func NewLogReprocessor(logger *zap.Logger) *LogReprocessor {
	return &LogReprocessor{logger: logger}
}

func (r *LogReprocessor) EnqueueInvestigation(ctx context.Context, alertID uint) error {
	r.logger.Info("AI investigation enqueued (stub)", zap.Uint("alert_id", alertID))
	return nil
}
