package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movies",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "movies",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"method", "path"})

	CatalogRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movies",
		Name:      "catalog_requests_total",
		Help:      "Total catalog requests by operation and result status.",
	}, []string{"operation", "status"})

	CatalogRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "movies",
		Name:      "catalog_request_duration_seconds",
		Help:      "Catalog request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	CatalogCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movies",
		Name:      "catalog_cache_hits_total",
		Help:      "Total number of catalog responses served from cache (Redis or in-process).",
	})

	SearchHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movies",
		Name:      "search_hits_recorded_total",
		Help:      "Total search hits written to the counter store.",
	})

	SearchHitFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movies",
		Name:      "search_hit_failures_total",
		Help:      "Total search hit writes that failed and were dropped.",
	})

	TrendingReadFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movies",
		Name:      "trending_read_failures_total",
		Help:      "Total trending reads that failed and returned no section.",
	})

	FavoriteTogglesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movies",
		Name:      "favorite_toggles_total",
		Help:      "Total favorite toggles by result (on, off, error).",
	}, []string{"result"})

	DebounceEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movies",
		Name:      "debounce_events_total",
		Help:      "Total debounced live-search events by kind.",
	}, []string{"kind"})

	LiveSearchSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "movies",
		Name:      "live_search_sessions",
		Help:      "Number of open live-search websocket sessions.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CatalogRequestsTotal,
		CatalogRequestDuration,
		CatalogCacheHitsTotal,
		SearchHitsTotal,
		SearchHitFailuresTotal,
		TrendingReadFailuresTotal,
		FavoriteTogglesTotal,
		DebounceEventsTotal,
		LiveSearchSessions,
	)
}
