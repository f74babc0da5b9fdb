package monitoring

import "github.com/prometheus/client_golang/prometheus"

var (
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	FeedRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_refreshes_total",
			Help: "Total number of member feed scoring runs",
		},
		[]string{"mode"},
	)

	FeedItemsMaterialized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_items_materialized_total",
			Help: "Total number of feed item rows bulk-inserted",
		},
	)

	GuestFeedRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guest_feed_requests_total",
			Help: "Total number of guest feed requests",
		},
	)

	PersonalizeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "personalize_failures_total",
			Help: "Total number of failed personalization calls",
		},
	)

	PersonalizeFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "personalize_fallbacks_total",
			Help: "Total number of feed pages served in unscored candidate order",
		},
	)
)

func Register() {
	prometheus.MustRegister(
		HttpRequestsTotal,
		HttpRequestDuration,
		ActiveConnections,
		FeedRefreshesTotal,
		FeedItemsMaterialized,
		GuestFeedRequestsTotal,
		PersonalizeFailuresTotal,
		PersonalizeFallbacksTotal,
	)
}
