package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestedChunks counts chunks written to the store.
	// Labels: tenant
	IngestedChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "knowledged",
			Subsystem: "knowledge",
			Name:      "ingested_chunks_total",
			Help:      "Total number of chunks ingested",
		},
		[]string{"tenant"},
	)

	// IngestErrors counts failed ingestions.
	// Labels: tenant, stage (extract, embed, upsert)
	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "knowledged",
			Subsystem: "knowledge",
			Name:      "ingest_errors_total",
			Help:      "Total number of failed document ingestions",
		},
		[]string{"tenant", "stage"},
	)

	// SearchDuration tracks end-to-end search latency.
	// Labels: strategy
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "knowledged",
			Subsystem: "knowledge",
			Name:      "search_duration_seconds",
			Help:      "Duration of search operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// SearchSkippedCollections counts collections skipped during a
	// search because of per-collection errors.
	SearchSkippedCollections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "knowledged",
			Subsystem: "knowledge",
			Name:      "search_skipped_collections_total",
			Help:      "Total number of collections skipped during search due to errors",
		},
	)

	// DeleteFallbacks counts deletions that fell back to the
	// scan-and-delete path.
	DeleteFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "knowledged",
			Subsystem: "knowledge",
			Name:      "delete_fallbacks_total",
			Help:      "Total number of deletions served by the scan-and-delete fallback",
		},
	)
)
