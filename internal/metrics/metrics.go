package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cueclub",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by payment method.",
		},
		[]string{"method"},
	)

	bookingRejectedAtSubmit = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cueclub",
			Name:      "booking_submit_rejected_total",
			Help:      "Count of submissions refused before persistence.",
		},
		[]string{"reason"},
	)

	adminDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cueclub",
			Name:      "admin_decision_total",
			Help:      "Count of admin decisions over pending items.",
		},
		[]string{"kind", "decision"},
	)

	broadcastSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cueclub",
			Name:      "broadcast_messages_total",
			Help:      "Count of broadcast push messages by outcome.",
		},
		[]string{"outcome"},
	)

	pushRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cueclub",
			Name:      "push_requests_total",
			Help:      "Count of push gateway calls by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cueclub",
			Name:      "http_requests_total",
			Help:      "Count of availability API requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingRejectedAtSubmit, adminDecision,
			broadcastSent, pushRequests, httpRequests,
		)
	})
}

func IncBookingCreated(method string) {
	bookingCreated.WithLabelValues(method).Inc()
}

func IncSubmitRejected(reason string) {
	bookingRejectedAtSubmit.WithLabelValues(reason).Inc()
}

func IncAdminDecision(kind, decision string) {
	adminDecision.WithLabelValues(kind, decision).Inc()
}

func IncBroadcast(outcome string) {
	broadcastSent.WithLabelValues(outcome).Inc()
}

func IncPushRequest(outcome string) {
	pushRequests.WithLabelValues(outcome).Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}
