// Package monitoring exposes the tick engine's prometheus metrics:
// per-tick timing, script outcomes, intent throughput and the usual
// HTTP/websocket/cache counters the gateway adapter records. All
// metrics register against their own registry so tests can construct
// a fresh Metrics without duplicate-registration panics.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the full set of counters and histograms the tick engine
// and its adapters record against. Construct one with New and keep it
// for the process lifetime; every field is safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	TickDuration   prometheus.Histogram
	TickErrors     prometheus.Counter
	ScriptsRun     prometheus.Counter
	ScriptsAborted prometheus.Counter
	IntentsApplied *prometheus.CounterVec
	EntitiesAlive  prometheus.Gauge

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	WebsocketConnections prometheus.Gauge
	CacheHits            *prometheus.CounterVec
}

// New constructs and registers every metric against a fresh registry.
// A fresh registry (rather than prometheus.DefaultRegisterer) keeps
// repeated New calls in tests from panicking on duplicate
// registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "simcore",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one tick's collect/reduce/apply/systems pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		TickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simcore",
			Name:      "tick_errors_total",
			Help:      "Ticks that surfaced at least one aborted script.",
		}),
		ScriptsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simcore",
			Name:      "scripts_run_total",
			Help:      "Compiled programs executed across all ticks.",
		}),
		ScriptsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simcore",
			Name:      "scripts_aborted_total",
			Help:      "Compiled programs that hit a fatal execution error.",
		}),
		IntentsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simcore",
			Name:      "intents_applied_total",
			Help:      "Intents committed to world state, by kind.",
		}, []string{"kind"}),
		EntitiesAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simcore",
			Name:      "entities_alive",
			Help:      "Entities present in the position table after the last tick.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simcore",
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the gateway, by route and status.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "simcore",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		WebsocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simcore",
			Name:      "websocket_connections",
			Help:      "Currently connected world-stream websocket clients.",
		}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simcore",
			Name:      "cache_requests_total",
			Help:      "Redis cache lookups, by cache name and hit/miss outcome.",
		}, []string{"cache", "outcome"}),
	}

	reg.MustRegister(
		m.TickDuration, m.TickErrors, m.ScriptsRun, m.ScriptsAborted,
		m.IntentsApplied, m.EntitiesAlive, m.HTTPRequests, m.HTTPRequestDuration,
		m.WebsocketConnections, m.CacheHits,
	)
	return m
}

// Handler returns the promhttp handler serving this Metrics'
// registry, for mounting at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTick records one tick's duration and, when failed is true,
// increments the tick error counter.
func (m *Metrics) ObserveTick(d time.Duration, failed bool) {
	m.TickDuration.Observe(d.Seconds())
	if failed {
		m.TickErrors.Inc()
	}
}

// ObserveHTTPRequest records one finished HTTP request.
func (m *Metrics) ObserveHTTPRequest(route, method string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, http.StatusText(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
