package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DeliveryEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetwatch_delivery_events_total",
		Help: "Provider delivery callbacks processed, by normalized status.",
	}, []string{"status"})

	UnmatchedCallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetwatch_unmatched_callbacks_total",
		Help: "Provider callbacks dropped because no notification result matched the sid.",
	})

	AcksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetwatch_acks_total",
		Help: "Alert acknowledgements recorded, by channel.",
	}, []string{"type"})

	EscalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetwatch_escalations_total",
		Help: "Alert escalations performed.",
	})

	SchedulerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetwatch_scheduler_ticks_total",
		Help: "Escalation scheduler passes completed.",
	})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetwatch_notifications_sent_total",
		Help: "Outbound notification attempts recorded, by channel.",
	}, []string{"channel"})
)
