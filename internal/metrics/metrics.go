// Package metrics provides Prometheus instrumentation for the anonbot
// service. It exposes gauges for the waiting pool and active sessions,
// counters for relay throughput and timeouts, and a histogram for
// time-to-match.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WaitingPoolSize tracks the current number of users searching for a
	// partner.
	WaitingPoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "anonbot_waiting_pool_size",
		Help: "Current number of users in the matching pool",
	})

	// ActiveSessions tracks the current number of paired conversations.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "anonbot_active_sessions",
		Help: "Current number of active anonymous chat sessions",
	})

	// MessagesRelayed counts messages successfully copied to a partner.
	MessagesRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anonbot_messages_relayed_total",
		Help: "Total number of messages relayed between partners",
	})

	// MessagesThrottled counts messages rejected by the anti-spam gate.
	MessagesThrottled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anonbot_messages_throttled_total",
		Help: "Total number of messages rejected by the throttle",
	})

	// DeliveryFailures counts partner copies that could not be delivered.
	DeliveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anonbot_delivery_failures_total",
		Help: "Total number of failed partner deliveries",
	})

	// SearchTimeouts counts searches that expired without a match.
	SearchTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anonbot_search_timeouts_total",
		Help: "Total number of searches that timed out",
	})

	// IdleTimeouts counts sessions closed by the inactivity timer.
	IdleTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anonbot_idle_timeouts_total",
		Help: "Total number of sessions closed for inactivity",
	})

	// TimeToMatch records how long the matched side of a pair waited in the
	// pool before pairing.
	TimeToMatch = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "anonbot_time_to_match_seconds",
		Help:    "Wait time in the pool before a match was found",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 240, 300},
	})

	// MailboxMessages counts link-based anonymous messages, labeled by
	// outcome: "queued", "delivered", "replied", "contact".
	MailboxMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anonbot_mailbox_messages_total",
		Help: "Total number of link-based anonymous messages processed",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		WaitingPoolSize,
		ActiveSessions,
		MessagesRelayed,
		MessagesThrottled,
		DeliveryFailures,
		SearchTimeouts,
		IdleTimeouts,
		TimeToMatch,
		MailboxMessages,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
