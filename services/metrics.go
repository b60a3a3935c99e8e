package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_upstream_fetches_total",
			Help: "Total upstream fetches by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_upstream_fetch_duration_seconds",
			Help:    "Duration of upstream fetches in seconds, all pages included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	feedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_requests_total",
			Help: "Total feed assemblies by outcome and ranking mode",
		},
		[]string{"outcome", "ranking"},
	)

	feedCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_candidates",
			Help:    "Number of deduplicated candidates per feed request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
)

func observeUpstream(source, outcome string, start time.Time) {
	upstreamRequests.WithLabelValues(source, outcome).Inc()
	upstreamDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}
