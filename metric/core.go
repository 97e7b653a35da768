// Package metric provides Prometheus metrics registration and the core
// platform metrics for the snapshot viewer.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes all metrics exposed by the viewer.
const Namespace = "snapviewer"

// Metrics contains all platform-level metrics for the viewer.
type Metrics struct {
	// Ingestion metrics
	MessagesReceived   prometheus.Counter
	MessagesDropped    *prometheus.CounterVec
	ImagesStored       prometheus.Counter
	ProcessingDuration prometheus.Histogram
	FetchesTotal       *prometheus.CounterVec

	// Store metrics
	StoreEntries prometheus.Gauge

	// Notifier metrics
	BroadcastsTotal prometheus.Counter
	SignalsDropped  prometheus.Counter
	ListenersActive prometheus.Gauge

	// Transport metrics
	MQTTConnected  prometheus.Gauge
	MQTTReconnects prometheus.Counter

	// HTTP surface metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Total number of bus messages delivered to the pipeline",
		}),

		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ingest",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped without a store update",
		}, []string{"reason"}),

		ImagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ingest",
			Name:      "images_stored_total",
			Help:      "Successfully classified images written to the store",
		}),

		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "ingest",
			Name:      "processing_duration_seconds",
			Help:      "Per-message processing duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Remote image fetch attempts by result",
		}, []string{"result"}),

		StoreEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "entries",
			Help:      "Number of logical keys with a stored image",
		}),

		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "notify",
			Name:      "broadcasts_total",
			Help:      "Change notifications broadcast to listeners",
		}),

		SignalsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "notify",
			Name:      "signals_dropped_total",
			Help:      "Signals coalesced because a listener slot was full",
		}),

		ListenersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "notify",
			Name:      "listeners_active",
			Help:      "Currently subscribed change listeners",
		}),

		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "MQTT broker connection status (0=disconnected, 1=connected)",
		}),

		MQTTReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "mqtt",
			Name:      "reconnects_total",
			Help:      "MQTT reconnection attempts observed",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by handler",
		}, []string{"handler"}),
	}
}

// collectors returns every core metric for bulk registration.
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesReceived,
		m.MessagesDropped,
		m.ImagesStored,
		m.ProcessingDuration,
		m.FetchesTotal,
		m.StoreEntries,
		m.BroadcastsTotal,
		m.SignalsDropped,
		m.ListenersActive,
		m.MQTTConnected,
		m.MQTTReconnects,
		m.HTTPRequests,
	}
}
