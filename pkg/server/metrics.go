package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	// Connection metrics
	activeConnections       prometheus.Gauge
	connectionsTotal        *prometheus.CounterVec // by transport
	connectionsDisconnected prometheus.Counter

	// Request metrics
	requestsReceived *prometheus.CounterVec // by message kind
	decodeFailures   prometheus.Counter
	handlerErrors    *prometheus.CounterVec // by message kind

	// Notification metrics
	notificationsQueued    prometheus.Counter
	notificationsDelivered prometheus.Counter
	notificationsDropped   prometheus.Counter
	dispatchDuration       prometheus.Histogram
	notificationFanout     prometheus.Histogram
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		activeConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "discussions_active_connections",
				Help: "Current number of open client connections",
			},
		),
		connectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discussions_connections_total",
				Help: "Total number of accepted connections by transport",
			},
			[]string{"transport"},
		),
		connectionsDisconnected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discussions_connections_closed_total",
				Help: "Total number of closed connections",
			},
		),
		requestsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discussions_requests_received_total",
				Help: "Total number of requests received by message kind",
			},
			[]string{"kind"},
		),
		decodeFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discussions_decode_failures_total",
				Help: "Total number of request lines that failed decoding",
			},
		),
		handlerErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discussions_handler_errors_total",
				Help: "Total number of handler errors by message kind",
			},
			[]string{"kind"},
		),
		notificationsQueued: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discussions_notifications_queued_total",
				Help: "Total number of notifications enqueued to mailboxes",
			},
		),
		notificationsDelivered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discussions_notifications_delivered_total",
				Help: "Total number of notification lines delivered to connections",
			},
		),
		notificationsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discussions_notifications_dropped_total",
				Help: "Total number of notifications dropped from full mailboxes",
			},
		),
		dispatchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "discussions_notification_dispatch_duration_seconds",
				Help:    "Time taken by one notification dispatch pass",
				Buckets: prometheus.DefBuckets,
			},
		),
		notificationFanout: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "discussions_notification_fanout",
				Help:    "Number of recipients per notification fan-out",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
			},
		),
	}
}

// RecordConnectionOpened tracks an accepted connection on a transport.
func (m *Metrics) RecordConnectionOpened(transport string, active int) {
	m.connectionsTotal.WithLabelValues(transport).Inc()
	m.activeConnections.Set(float64(active))
}

// RecordConnectionClosed tracks a closed connection.
func (m *Metrics) RecordConnectionClosed(active int) {
	m.connectionsDisconnected.Inc()
	m.activeConnections.Set(float64(active))
}

// RecordRequest increments the request counter for a message kind.
func (m *Metrics) RecordRequest(kind string) {
	m.requestsReceived.WithLabelValues(kind).Inc()
}

// RecordDecodeFailure increments the decode failure counter.
func (m *Metrics) RecordDecodeFailure() {
	m.decodeFailures.Inc()
}

// RecordHandlerError increments the handler error counter for a kind.
func (m *Metrics) RecordHandlerError(kind string) {
	m.handlerErrors.WithLabelValues(kind).Inc()
}

// RecordFanout records how many recipients one notification reached.
func (m *Metrics) RecordFanout(recipients int) {
	m.notificationFanout.Observe(float64(recipients))
}

// RecordNotificationQueued implements notify.Metrics.
func (m *Metrics) RecordNotificationQueued() {
	m.notificationsQueued.Inc()
}

// RecordNotificationDelivered implements notify.Metrics.
func (m *Metrics) RecordNotificationDelivered() {
	m.notificationsDelivered.Inc()
}

// RecordNotificationDropped implements notify.Metrics.
func (m *Metrics) RecordNotificationDropped() {
	m.notificationsDropped.Inc()
}

// RecordDispatchDuration implements notify.Metrics.
func (m *Metrics) RecordDispatchDuration(seconds float64) {
	m.dispatchDuration.Observe(seconds)
}
