package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lifecycle transitions by entity (task, phase) and transition name
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetrack_transitions_total",
			Help: "Total number of phase and task lifecycle transitions",
		},
		[]string{"entity", "transition"},
	)

	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetrack_notifications_emitted_total",
			Help: "Total number of notifications handed to the delivery queue",
		},
		[]string{"type"},
	)

	// Notifications lost because the queue or store failed
	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetrack_notifications_dropped_total",
			Help: "Total number of notifications that failed to be delivered",
		},
		[]string{"type"},
	)

	PhaseResequences = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetrack_phase_resequence_total",
			Help: "Total number of phase re-sequencing operations",
		},
		[]string{"operation"}, // insert, remove, move
	)

	SiteLockWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitetrack_lock_wait_seconds",
			Help:    "Time spent waiting for a scoped workflow lock",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"backend"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func RecordTransition(entity, transition string) {
	Transitions.WithLabelValues(entity, transition).Inc()
}

func RecordLockWait(backend string, d time.Duration) {
	SiteLockWait.WithLabelValues(backend).Observe(d.Seconds())
}

func RecordHTTPRequest(method, path, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
