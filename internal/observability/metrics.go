package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (display offline) or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: slow page renders.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream API call rate per source (weather, whoop, tasks). Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per source. Watch for: p95 > 2s (upstream degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Retry attempts per upstream source. High retries = unstable upstream.
	UpstreamRetriesTotal *prometheus.CounterVec

	// Cache hits per panel. Hit rate = hits / (hits + upstream calls for that source).
	CacheHitsTotal *prometheus.CounterVec

	// Cache operation errors (memcached timeouts, connection failures).
	CacheErrorsTotal *prometheus.CounterVec

	// Panels that rendered empty because their data source failed.
	PanelRenderErrorsTotal *prometheus.CounterVec

	// Rate limit denials on the panel JSON routes.
	RateLimitDeniedTotal prometheus.Counter

	// Panel warming runs, duration, and failures.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram
	CacheWarmingErrorsTotal     prometheus.Counter

	// Circuit breaker transitions and state per upstream source.
	BreakerTransitionsTotal *prometheus.CounterVec
	BreakerStateGauge       *prometheus.GaugeVec

	// In-flight requests observed at shutdown.
	ShutdownInFlightRequests prometheus.Gauge
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls by source",
		},
		[]string{"source", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source", "status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of retry attempts for upstream API calls",
		},
		[]string{"source"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits by panel",
		},
		[]string{"panel"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation", "reason"},
	)
	PanelRenderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelRenderErrorsTotal",
			Help: "Panels rendered empty because their data source failed",
		},
		[]string{"panel"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of panel warming runs",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Panel warming duration in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Total number of panel warming runs with at least one failure",
		},
	)
	BreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakerTransitionsTotal",
			Help: "Circuit breaker state transitions by upstream source",
		},
		[]string{"source", "from", "to"},
	)
	BreakerStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "breakerState",
			Help: "Circuit breaker state by source (0=closed, 1=open, 2=half_open)",
		},
		[]string{"source"},
	)
	ShutdownInFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests observed when graceful shutdown began",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamRetriesTotal,
		CacheHitsTotal, CacheErrorsTotal, PanelRenderErrorsTotal,
		RateLimitDeniedTotal,
		CacheWarmingTotal, CacheWarmingDurationSeconds, CacheWarmingErrorsTotal,
		BreakerTransitionsTotal, BreakerStateGauge,
		ShutdownInFlightRequests,
	)
}

// RecordBreakerTransition records a breaker state change and updates the state gauge.
func RecordBreakerTransition(source, from, to string, toValue int) {
	BreakerTransitionsTotal.WithLabelValues(source, from, to).Inc()
	BreakerStateGauge.WithLabelValues(source).Set(float64(toValue))
}

// RecordShutdownInFlight records the in-flight request count at shutdown start.
func RecordShutdownInFlight(count int64) {
	ShutdownInFlightRequests.Set(float64(count))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
