package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for ranking, engagement and notifications
var (
	// feedRequestsTotal counts feed reads by the path that served them
	// (advanced, simple, chronological).
	feedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_feed_requests_total",
		Help: "Total number of feed pages served, by ranking path",
	}, []string{"path"})

	// feedFallbacksTotal counts degradations, by reason
	feedFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_feed_fallbacks_total",
		Help: "Total number of feed ranking fallbacks, by reason",
	}, []string{"reason"})

	feedLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulse_feed_duration_seconds",
		Help:    "Feed ranking latency in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	feedCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulse_feed_candidates",
		Help:    "Size of the candidate pool per feed request",
		Buckets: []float64{0, 10, 25, 50, 75, 100, 150, 200},
	})

	// engagementActionsTotal counts recorded engagement actions by kind
	engagementActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_engagement_actions_total",
		Help: "Total number of engagement actions recorded, by action",
	}, []string{"action"})

	notificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_notifications_created_total",
		Help: "Total number of notifications persisted, by type",
	}, []string{"type"})

	// notificationsSuppressedTotal counts notifications skipped by preference or block
	notificationsSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_notifications_suppressed_total",
		Help: "Total number of notifications suppressed by recipient preferences or blocks, by type",
	}, []string{"type"})

	// publishFailuresTotal counts best-effort live deliveries that failed
	publishFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_publish_failures_total",
		Help: "Total number of failed live event publishes, by event",
	}, []string{"event"})

	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_search_requests_total",
		Help: "Total number of search requests, by kind",
	}, []string{"kind"})

	// searchDegradedTotal counts searches answered with an empty page after a store failure
	searchDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_search_degraded_total",
		Help: "Total number of searches degraded to an empty result, by kind",
	}, []string{"kind"})
)
