package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		notificationsTotal,
		subscriptionsPrunedTotal,
	)
}

var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_notifications_total",
		Help: "Push notification attempts, labeled by kind and outcome.",
	},
	[]string{"kind", "outcome"}, // kind: 'chat_reply'|'event_before'|'event_after'; outcome: 'delivered'|'undelivered'|'unsupported'
)

var subscriptionsPrunedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "push_subscriptions_pruned_total",
		Help: "Subscriptions deleted after the endpoint reported itself gone.",
	},
)

func IncNotification(kind, outcome string) {
	notificationsTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}

func IncSubscriptionPruned() {
	subscriptionsPrunedTotal.Inc()
}
