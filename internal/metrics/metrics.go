// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// QuestionsTotal counts processed questions by terminal outcome
	// (succeeded, exhausted, failed, cached).
	QuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aisavvy_questions_total",
			Help: "Questions processed, labelled by terminal outcome.",
		},
		[]string{"outcome"},
	)

	// AttemptsPerQuestion observes how many generation attempts each
	// non-cached question needed.
	AttemptsPerQuestion = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aisavvy_attempts_per_question",
			Help:    "Generation attempts needed per question.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// StageDuration observes per-stage latency in seconds.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aisavvy_stage_duration_seconds",
			Help:    "Latency per pipeline stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// CacheEvents counts cache hits and misses.
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aisavvy_cache_events_total",
			Help: "Response cache lookups by result.",
		},
		[]string{"result"},
	)

	// AttemptFailures counts failed attempts by error kind.
	AttemptFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aisavvy_attempt_failures_total",
			Help: "Failed generation attempts by error kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		QuestionsTotal,
		AttemptsPerQuestion,
		StageDuration,
		CacheEvents,
		AttemptFailures,
	)
}
