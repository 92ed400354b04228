// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState tracks the socket state (0 disconnected, 1
	// connecting, 2 connected).
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connection_state",
			Help: "Socket connection state (0=disconnected, 1=connecting, 2=connected)",
		},
	)

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_reconnect_attempts_total",
			Help: "Total socket reconnection attempts",
		},
	)

	// EventsTotal tracks inbound wire events by type.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_total",
			Help: "Total inbound wire events",
		},
		[]string{"type"},
	)

	// MessagesSentTotal tracks outbound message dispatches.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total outbound message dispatches",
		},
		[]string{"message_type"},
	)

	// SendsRejectedTotal tracks sends refused while disconnected.
	SendsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sends_rejected_total",
			Help: "Total sends rejected because the socket was not connected",
		},
	)

	// UploadsTotal tracks attachment uploads by outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_uploads_total",
			Help: "Total attachment uploads",
		},
		[]string{"status"},
	)

	// ReadReceiptsTotal tracks outbound read marks by kind.
	ReadReceiptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_read_receipts_total",
			Help: "Total outbound read receipts",
		},
		[]string{"kind"},
	)

	// DuplicateEventsTotal tracks silently absorbed duplicates.
	DuplicateEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_duplicate_events_total",
			Help: "Total duplicate events absorbed",
		},
		[]string{"type"},
	)

	// RequestDuration tracks local control API request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_api_request_duration_seconds",
			Help:    "Local control API request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks local control API requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_api_requests_total",
			Help: "Total local control API requests",
		},
		[]string{"method", "path", "status"},
	)
)

// RecordRequest records metrics for a local control API request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordState records the socket state transition on the gauge.
func RecordState(state string) {
	switch state {
	case "connected":
		ConnectionState.Set(2)
	case "connecting":
		ConnectionState.Set(1)
	default:
		ConnectionState.Set(0)
	}
}
