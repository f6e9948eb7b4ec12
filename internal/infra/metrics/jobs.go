package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		messagesProcessedTotal,
		claimsTotal,
		jobsProcessedTotal,
		queueCallbacksTotal,
	)
}

var messagesProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coach_messages_processed_total",
		Help: "Assistant reply placeholders finalized, labeled by outcome.",
	},
	[]string{"outcome"}, // 'completed', 'fallback', 'failed'
)

var claimsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coach_claims_total",
		Help: "Claim attempts on pending messages, labeled by result.",
	},
	[]string{"result"}, // 'won', 'lost', 'reclaimed'
)

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coach_jobs_processed_total",
		Help: "Background generation jobs processed, labeled by kind and status.",
	},
	[]string{"kind", "status"},
)

var queueCallbacksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coach_queue_callbacks_total",
		Help: "External queue callback deliveries, labeled by disposition.",
	},
	[]string{"disposition"}, // 'processed', 'duplicate', 'rejected', 'error'
)

func IncMessageProcessed(outcome string) {
	messagesProcessedTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncClaim(result string) {
	claimsTotal.WithLabelValues(norm(result)).Inc()
}

func IncJob(kind, status string) {
	jobsProcessedTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func IncQueueCallback(disposition string) {
	queueCallbacksTotal.WithLabelValues(norm(disposition)).Inc()
}
