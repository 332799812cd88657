// Package metrics provides Prometheus metrics for the mapping service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal tracks sync runs by sync type and outcome
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gomapping",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync runs by type and status",
		},
		[]string{"sync_type", "status"},
	)

	// SyncDuration tracks sync run duration in seconds
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gomapping",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"sync_type"},
	)

	// SyncRowsSkipped tracks feed rows rejected during validation
	SyncRowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gomapping",
			Subsystem: "sync",
			Name:      "rows_skipped_total",
			Help:      "Total number of feed rows skipped during validation",
		},
		[]string{"sync_type"},
	)

	// SimilarityRecomputeDuration tracks full recompute duration
	SimilarityRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gomapping",
			Subsystem: "similarity",
			Name:      "recompute_duration_seconds",
			Help:      "Duration of full similarity recomputes in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	// SimilarityCandidatePairs tracks candidate pairs per recompute
	SimilarityCandidatePairs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gomapping",
			Subsystem: "similarity",
			Name:      "candidate_pairs",
			Help:      "Candidate pairs produced by blocking in the last recompute",
		},
	)

	// SimilarityEdgesStored tracks edges written in the last recompute
	SimilarityEdgesStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gomapping",
			Subsystem: "similarity",
			Name:      "edges_stored",
			Help:      "Similarity edges at or above the threshold in the last recompute",
		},
	)

	// CacheHitsTotal tracks view cache hits and misses
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gomapping",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of view cache lookups by result",
		},
		[]string{"view", "result"},
	)
)
