// Package metrics defines the Prometheus collectors for the synchronization
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors. Each instance owns its
// registry so independent components and tests never collide on metric names.
type Metrics struct {
	registry *prometheus.Registry

	EventsQueuedTotal    *prometheus.CounterVec
	EventsCoalescedTotal *prometheus.CounterVec
	QueueDepth           prometheus.Gauge

	DeliveriesTotal      *prometheus.CounterVec
	DeliveryRetriesTotal prometheus.Counter
	DeadLettersTotal     prometheus.Counter
	DeliveryDuration     prometheus.Histogram

	IngestItemsTotal    *prometheus.CounterVec
	AuthRejectionsTotal prometheus.Counter
	SearchLatency       *prometheus.HistogramVec
}

// New creates and registers all pipeline metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsQueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_events_queued_total",
				Help: "Change events accepted by the queue, by operation.",
			},
			[]string{"operation"},
		),
		EventsCoalescedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_events_coalesced_total",
				Help: "Change events superseded by a newer event for the same document.",
			},
			[]string{"operation"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sync_queue_depth",
				Help: "Pending document keys currently held in the coalescing queue.",
			},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_deliveries_total",
				Help: "Webhook delivery attempts by outcome (accepted, retryable, failed).",
			},
			[]string{"outcome"},
		),
		DeliveryRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sync_delivery_retries_total",
				Help: "Webhook deliveries that were retried after a transient failure.",
			},
		),
		DeadLettersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sync_dead_letters_total",
				Help: "Change events parked in the dead letter store after exhausting retries.",
			},
		),
		DeliveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sync_delivery_duration_seconds",
				Help:    "Webhook batch delivery latency in seconds.",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		IngestItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_items_total",
				Help: "Ingested batch items by result status.",
			},
			[]string{"status"},
		),
		AuthRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_auth_rejections_total",
				Help: "Requests rejected by the signature middleware.",
			},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds, by mode.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"mode"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EventsQueuedTotal,
		m.EventsCoalescedTotal,
		m.QueueDepth,
		m.DeliveriesTotal,
		m.DeliveryRetriesTotal,
		m.DeadLettersTotal,
		m.DeliveryDuration,
		m.IngestItemsTotal,
		m.AuthRejectionsTotal,
		m.SearchLatency,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
