package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Per-record outcomes, labelled by function and outcome (success, fetch_error, ...).
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listingflow_records_total",
			Help: "Total number of records processed",
		},
		[]string{"function", "outcome"},
	)

	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listingflow_batches_total",
			Help: "Total number of notification batches handled",
		},
		[]string{"function", "outcome"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listingflow_batch_duration_seconds",
			Help:    "Duration of notification batches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"function"},
	)

	BatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listingflow_batch_size",
			Help:    "Number of records per notification batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"function"},
	)
)
