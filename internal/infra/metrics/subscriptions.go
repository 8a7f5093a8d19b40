package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsWrittenTotal,
		membershipTransitionsTotal,
		usersRegisteredTotal,
	)
}

var (
	subscriptionsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_written_total",
			Help: "Subscriptions stored after a validated payment.",
		},
		[]string{"kind"}, // 'new', 'renewal'
	)

	membershipTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_transitions_total",
			Help: "Group membership state transitions applied by the reconciler.",
		},
		[]string{"transition"}, // 'admitted', 'removed'
	)

	usersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of new users registered.",
		},
	)
)

func IncSubscriptionWritten(kind string) {
	subscriptionsWrittenTotal.WithLabelValues(norm(kind)).Inc()
}

func IncMembershipTransition(transition string) {
	membershipTransitionsTotal.WithLabelValues(norm(transition)).Inc()
}

func IncUsersRegistered() {
	usersRegisteredTotal.Inc()
}
