package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsIndexed counts ledger events persisted into the projection
	EventsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hatchmark_events_indexed_total",
			Help: "Total number of ledger events persisted into the projection",
		},
		[]string{"event_type"},
	)

	// MalformedEvents counts events skipped for an unexpected shape
	MalformedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hatchmark_events_malformed_total",
			Help: "Total number of malformed ledger events skipped",
		},
		[]string{"event_type"},
	)

	// IndexerErrors counts indexing failures by stage
	IndexerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hatchmark_indexer_errors_total",
			Help: "Total number of indexer failures",
		},
		[]string{"event_type", "stage"},
	)

	// PollDuration tracks one poll cycle per event type
	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hatchmark_indexer_poll_duration_seconds",
			Help:    "Duration of one indexer poll cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	// MatcherQueries counts similarity scans by context
	MatcherQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hatchmark_matcher_queries_total",
			Help: "Total number of similarity corpus scans",
		},
		[]string{"context"},
	)
)
