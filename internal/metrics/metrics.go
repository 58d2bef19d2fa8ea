package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters and histograms for the fetch/decode/classify/dedup pipeline,
// partitioned by chain and (where relevant) provider.

var (
	// Receipt fetch layer
	FetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whaletx",
		Subsystem: "fetch",
		Name:      "attempts_total",
		Help:      "Receipt fetch attempts per provider",
	}, []string{"chain", "provider"})

	FetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whaletx",
		Subsystem: "fetch",
		Name:      "failures_total",
		Help:      "Receipt fetch failures per provider, by failure class",
	}, []string{"chain", "provider", "class"})

	FetchExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whaletx",
		Subsystem: "fetch",
		Name:      "providers_exhausted_total",
		Help:      "Fetches that failed on every configured provider",
	}, []string{"chain"})

	FetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whaletx",
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "End-to-end receipt fetch duration, including failover",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"chain", "provider"})

	RateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whaletx",
		Subsystem: "fetch",
		Name:      "rate_limit_waits_total",
		Help:      "Times an outbound call blocked on the provider token bucket",
	}, []string{"provider"})

	// Event decoding
	DecodedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whaletx",
		Subsystem: "decode",
		Name:      "events_total",
		Help:      "Decoded events by kind",
	}, []string{"kind"})

	DecodeSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whaletx",
		Subsystem: "decode",
		Name:      "skipped_total",
		Help:      "Logs skipped during decoding, by reason",
	}, []string{"reason"})

	// Classification
	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whaletx",
		Subsystem: "classify",
		Name:      "results_total",
		Help:      "Final classifications by label and confidence level",
	}, []string{"classification", "confidence_level"})

	ManualReviewTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whaletx",
		Subsystem: "classify",
		Name:      "manual_review_total",
		Help:      "Results whose confidence fell below the review threshold",
	}, []string{"classification"})

	// Dedup sweeps
	DedupRemovalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whaletx",
		Subsystem: "dedup",
		Name:      "removals_total",
		Help:      "Records superseded by the near-duplicate detector, by reason",
	}, []string{"reason"})

	DedupSweepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whaletx",
		Subsystem: "dedup",
		Name:      "sweep_duration_seconds",
		Help:      "Per-token dedup sweep duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"token"})

	// Pipeline
	PipelineProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whaletx",
		Subsystem: "pipeline",
		Name:      "transactions_total",
		Help:      "Transactions processed end to end, by outcome",
	}, []string{"chain", "outcome"})

	PipelineLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whaletx",
		Subsystem: "pipeline",
		Name:      "transaction_duration_seconds",
		Help:      "Per-transaction pipeline duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"chain"})
)
