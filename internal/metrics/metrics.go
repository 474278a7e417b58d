package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts backend calls by resource, method and status code ("error" for transport failures).
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courseattend",
		Name:      "api_requests_total",
		Help:      "Backend API requests issued by the console.",
	}, []string{"resource", "method", "code"})

	// APIDuration observes backend call latency.
	APIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "courseattend",
		Name:      "api_request_duration_seconds",
		Help:      "Backend API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resource", "method"})

	// CheckinTransitions counts check-in flow state entries.
	CheckinTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courseattend",
		Name:      "checkin_transitions_total",
		Help:      "Check-in flow state transitions by target state.",
	}, []string{"state"})

	// ActiveFlows tracks check-in flows currently hosted by the console.
	ActiveFlows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "courseattend",
		Name:      "checkin_flows_active",
		Help:      "Hosted check-in flows not yet evicted.",
	})

	// SessionEvents counts console login/logout/unauthorized teardowns.
	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courseattend",
		Name:      "session_events_total",
		Help:      "Console session lifecycle events.",
	}, []string{"event"})
)
