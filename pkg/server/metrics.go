package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	registry *prometheus.Registry

	// Connection metrics
	activeConnections prometheus.Gauge
	connectionsTotal  *prometheus.CounterVec

	// Command metrics
	commandsReceived *prometheus.CounterVec

	// Delivery metrics
	messagesEnqueued  prometheus.Counter
	messagesDelivered *prometheus.CounterVec
	deliveryFailures  *prometheus.CounterVec
	batchSize         prometheus.Histogram
	flushDuration     prometheus.Histogram
	broadcastFanout   prometheus.Histogram
}

// NewMetrics creates a metrics instance backed by its own registry so
// multiple servers (tests included) never collide on metric names.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "courier_active_connections",
			Help: "Number of currently connected clients",
		}),
		connectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_connections_total",
			Help: "Total number of accepted connections",
		}, []string{"transport"}),
		commandsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_commands_received_total",
			Help: "Total number of client commands received",
		}, []string{"command"}),
		messagesEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "courier_messages_enqueued_total",
			Help: "Total number of messages accepted into the delivery queue",
		}),
		messagesDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_messages_delivered_total",
			Help: "Total number of message deliveries to clients",
		}, []string{"kind"}), // "unicast" or "broadcast"
		deliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_delivery_failures_total",
			Help: "Total number of failed deliveries",
		}, []string{"reason"}), // "offline" or "send_error"
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "courier_delivery_batch_size",
			Help:    "Number of messages processed per flush cycle",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),
		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "courier_flush_duration_seconds",
			Help:    "Time spent processing one flush cycle",
			Buckets: prometheus.DefBuckets,
		}),
		broadcastFanout: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "courier_broadcast_fanout",
			Help:    "Number of clients that received each broadcast message",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}
}

// Registry exposes the backing registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordConnection(transport string, active int) {
	m.connectionsTotal.WithLabelValues(transport).Inc()
	m.activeConnections.Set(float64(active))
}

func (m *Metrics) RecordDisconnect(active int) {
	m.activeConnections.Set(float64(active))
}

func (m *Metrics) RecordCommand(command string) {
	m.commandsReceived.WithLabelValues(command).Inc()
}

func (m *Metrics) RecordEnqueued() {
	m.messagesEnqueued.Inc()
}

func (m *Metrics) RecordDelivered(kind string) {
	m.messagesDelivered.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordDeliveryFailure(reason string) {
	m.deliveryFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordFlush(batchSize int, seconds float64) {
	m.batchSize.Observe(float64(batchSize))
	m.flushDuration.Observe(seconds)
}

func (m *Metrics) RecordBroadcastFanout(targets int) {
	m.broadcastFanout.Observe(float64(targets))
}
