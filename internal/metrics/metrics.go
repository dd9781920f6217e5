// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts similarity queries by serving tier and status.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordsim_queries_total",
			Help: "Similarity queries served, by tier (index, accel, fallback) and status",
		},
		[]string{"tier", "status"},
	)

	// QueryDurationSeconds measures end-to-end query latency by tier.
	QueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ordsim_query_duration_seconds",
			Help:    "Similarity query latency by serving tier",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tier"},
	)

	// IngestItemsTotal counts ingested items by outcome.
	IngestItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordsim_ingest_items_total",
			Help: "Items processed by the ingestion pipeline, by outcome (fingerprinted, skipped, missing, undecodable)",
		},
		[]string{"outcome"},
	)

	// IngestRetriesTotal counts transient-failure retries of ingestion windows.
	IngestRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ordsim_ingest_retries_total",
			Help: "Ingestion window retries after transient upstream failures",
		},
	)

	// MaintainerWritesTotal counts index maintenance outcomes.
	MaintainerWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordsim_maintainer_writes_total",
			Help: "Similarity index maintenance outcomes (new, refreshed, unchanged, failed)",
		},
		[]string{"outcome"},
	)

	// ComparisonsSkippedTotal counts candidates skipped during scans because
	// their fingerprint bit length violated the store invariant.
	ComparisonsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ordsim_comparisons_skipped_total",
			Help: "Candidates skipped during top-N scans due to fingerprint length mismatch",
		},
	)
)
