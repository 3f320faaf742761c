package observability

import (
	"net/http"
	"strconv"
	"time"

	"lms-dashboard/application/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the service
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	CacheErrors     *prometheus.CounterVec
	ComputeLatency  *prometheus.HistogramVec
	InvalidatedKeys *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace.
// Each collector owns its registry, so tests can create as many as they like.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of dashboard cache hits",
			},
			[]string{"family"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of dashboard cache misses",
			},
			[]string{"family"},
		),
		CacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Cache store failures absorbed by the dashboard cache",
			},
			[]string{"operation"},
		),
		ComputeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dashboard_compute_duration_seconds",
				Help:      "Time spent recomputing a dashboard entry on a miss",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"family", "status"},
		),
		InvalidatedKeys: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_keys_invalidated_total",
				Help:      "Dashboard cache entries evicted, by reason",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.CacheHits,
		c.CacheMisses,
		c.CacheErrors,
		c.ComputeLatency,
		c.InvalidatedKeys,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry exposes the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// CacheHit implements ports.MetricsRecorder
func (c *Collector) CacheHit(family string) {
	c.CacheHits.WithLabelValues(family).Inc()
}

// CacheMiss implements ports.MetricsRecorder
func (c *Collector) CacheMiss(family string) {
	c.CacheMisses.WithLabelValues(family).Inc()
}

// CacheError implements ports.MetricsRecorder
func (c *Collector) CacheError(operation string) {
	c.CacheErrors.WithLabelValues(operation).Inc()
}

// ComputeDuration implements ports.MetricsRecorder
func (c *Collector) ComputeDuration(family string, d time.Duration, err error) {
	c.ComputeLatency.WithLabelValues(family, status(err)).Observe(d.Seconds())
}

// KeysInvalidated implements ports.MetricsRecorder
func (c *Collector) KeysInvalidated(reason string, count int) {
	c.InvalidatedKeys.WithLabelValues(reason).Add(float64(count))
}

// Middleware records request counts and latencies by chi route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

var _ ports.MetricsRecorder = (*Collector)(nil)
