// Package observability provides domain metrics and tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTransitions counts follow-request state changes by resulting status.
	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circles_request_transitions_total",
		Help: "Total number of follow request transitions by resulting status",
	}, []string{"status"})

	// FollowEdgeChanges counts graph mutations by operation and outcome.
	// outcome is "applied" or "noop" so lost races stay visible.
	FollowEdgeChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circles_follow_edge_changes_total",
		Help: "Total number of follow edge mutations",
	}, []string{"operation", "outcome"})

	// LikeChanges counts like and unlike statements by outcome.
	LikeChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circles_like_changes_total",
		Help: "Total number of like and unlike operations",
	}, []string{"operation", "outcome"})

	// DatabaseQueryLatency records query latency by statement kind.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "circles_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// WebSocketEventsTotal counts events pushed to websocket clients by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circles_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circles_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// Outcome maps a conditional write result to a metric label.
func Outcome(applied bool) string {
	if applied {
		return "applied"
	}
	return "noop"
}

// RecordEdgeChange counts one follow edge mutation.
func RecordEdgeChange(operation string, applied bool) {
	FollowEdgeChanges.WithLabelValues(operation, Outcome(applied)).Inc()
}
