// Package metrics exposes the service's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recipebox/internal/cache"
)

// Collector holds the Prometheus metrics of one server instance. Each
// collector owns its registry, so tests can build as many as they need.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	StoreBreakerTransitions *prometheus.CounterVec
	ToggleOperations        *prometheus.CounterVec
}

// NewCollector creates a collector whose metric names are prefixed with namespace
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
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		StoreBreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_breaker_transitions_total",
				Help:      "Document store circuit breaker state changes",
			},
			[]string{"from", "to"},
		),
		ToggleOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "toggle_operations_total",
				Help:      "Reconciler writes by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.StoreBreakerTransitions,
		c.ToggleOperations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// RegisterCache exports the response cache counters
func (c *Collector) RegisterCache(namespace string, rc *cache.ResponseCache) {
	counter := func(name, help string, value func(cache.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "cache", Name: name, Help: help},
			func() float64 { return float64(value(rc.Counters())) },
		)
	}

	c.registry.MustRegister(
		counter("hits_total", "Response cache hits", func(s cache.Stats) uint64 { return s.Hits }),
		counter("misses_total", "Response cache misses", func(s cache.Stats) uint64 { return s.Misses }),
		counter("loads_total", "Store loads performed on a miss", func(s cache.Stats) uint64 { return s.Loads }),
		counter("errors_total", "Cache backend failures", func(s cache.Stats) uint64 { return s.Errors }),
		counter("invalidations_total", "Invalidation sweeps", func(s cache.Stats) uint64 { return s.Invalidations }),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "cache", Name: "suspect", Help: "1 while the cache serves no hits after a failed invalidation"},
			func() float64 {
				if rc.Counters().Suspect {
					return 1
				}
				return 0
			},
		),
	)
}

// RecordToggle counts a reconciler write
func (c *Collector) RecordToggle(operation, outcome string) {
	c.ToggleOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordBreakerTransition counts a circuit breaker state change
func (c *Collector) RecordBreakerTransition(from, to string) {
	c.StoreBreakerTransitions.WithLabelValues(from, to).Inc()
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
