package handlers

import (
	"github.com/fleetwatch-dev/fleetwatch/internal/acks"
	"github.com/fleetwatch-dev/fleetwatch/internal/attention"
	"github.com/fleetwatch-dev/fleetwatch/internal/delivery"
	"github.com/fleetwatch-dev/fleetwatch/internal/dispatch"
	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/flags"
	"github.com/fleetwatch-dev/fleetwatch/internal/pipeline"
	"go.uber.org/zap"
)

// Package-level collaborators, wired once at startup.
var (
	engine      *attention.Engine
	correlator  *acks.Correlator
	tracker     *delivery.Tracker
	eventLog    *events.Log
	flagSvc     *flags.Service
	dispatcher  *dispatch.Dispatcher
	reprocessor pipeline.Reprocessor
	logger      *zap.Logger
)

// Configure injects the handler dependencies. Must be called before the
// router starts serving.
func Configure(
	attentionEngine *attention.Engine,
	ackCorrelator *acks.Correlator,
	deliveryTracker *delivery.Tracker,
	domainEvents *events.Log,
	featureFlags *flags.Service,
	notificationDispatcher *dispatch.Dispatcher,
	aiReprocessor pipeline.Reprocessor,
	log *zap.Logger,
) {
	engine = attentionEngine
	correlator = ackCorrelator
	tracker = deliveryTracker
	eventLog = domainEvents
	flagSvc = featureFlags
	dispatcher = notificationDispatcher
	reprocessor = aiReprocessor
	logger = log
}
