package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for pipeline outcomes. Observability only; correctness
// never depends on in-process state.
var (
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailtask_webhooks_received_total",
		Help: "Inbound change notifications by outcome.",
	}, []string{"outcome"})

	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailtask_sync_runs_total",
		Help: "Account sync invocations by outcome.",
	}, []string{"outcome"})

	MessagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtask_messages_processed_total",
		Help: "Messages ingested and linked to a task.",
	})

	MessagesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtask_messages_skipped_total",
		Help: "Messages skipped as duplicates or per-message failures.",
	})

	PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailtask_push_deliveries_total",
		Help: "Push endpoint deliveries by outcome.",
	}, []string{"outcome"})
)
