// Package metrics provides Prometheus metrics for the traitsync service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal tracks batch sync outcomes by status (synced, retryable,
	// validation, unmapped_field, event_not_supported, fatal)
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traitsync",
			Subsystem: "sync",
			Name:      "batches_total",
			Help:      "Total number of processed batches by outcome",
		},
		[]string{"status"},
	)

	// BatchDuration tracks end-to-end batch duration in seconds
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "traitsync",
			Subsystem: "sync",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch syncs in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// ContactsUpsertedTotal tracks contacts submitted to the destination
	ContactsUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "traitsync",
			Subsystem: "sync",
			Name:      "contacts_upserted_total",
			Help:      "Total number of contact records submitted for upsert",
		},
	)

	// TraitFetchDuration tracks per-user profile trait fetch duration
	TraitFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "traitsync",
			Subsystem: "profile",
			Name:      "trait_fetch_duration_seconds",
			Help:      "Duration of profile trait fetches in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traitsync",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "traitsync",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// EventsConsumedTotal tracks events consumed from Kafka by result
	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traitsync",
			Subsystem: "consumer",
			Name:      "events_total",
			Help:      "Total number of events consumed from Kafka by result",
		},
		[]string{"result"},
	)

	// DeadLetteredTotal tracks batches published to the error topic
	DeadLetteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "traitsync",
			Subsystem: "consumer",
			Name:      "dead_lettered_total",
			Help:      "Total number of batches published to the error topic",
		},
	)
)
