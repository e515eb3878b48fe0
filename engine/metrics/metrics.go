// Package metrics wires the engine's execution counters into Prometheus,
// grounded on lockbox/monitoring/prometheus.go's PrometheusCollector
// (registry-owning wrapper around a handful of named collectors),
// adapted from shard/verification counters to script load/check/invoke
// counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds the engine's Prometheus collectors and the private
// registry they are registered against.
type Collector struct {
	registry *prometheus.Registry

	LoadTotal      *prometheus.CounterVec
	CheckTotal     *prometheus.CounterVec
	InvokeTotal    *prometheus.CounterVec
	InvokeLatency  *prometheus.HistogramVec
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	RateLimited    prometheus.Counter
	ActiveScripts  prometheus.Gauge
}

// NewCollector builds a Collector with its own private registry so that
// an embedding application can mount it at whatever path it chooses.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		LoadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embedscript",
			Name:      "load_total",
			Help:      "Total script load attempts, labeled by outcome.",
		}, []string{"outcome"}),
		CheckTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embedscript",
			Name:      "check_total",
			Help:      "Total script check (parse-only) attempts, labeled by outcome.",
		}, []string{"outcome"}),
		InvokeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embedscript",
			Name:      "invoke_total",
			Help:      "Total procedure invocations, labeled by outcome.",
		}, []string{"procedure", "outcome"}),
		InvokeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "embedscript",
			Name:      "invoke_duration_seconds",
			Help:      "Procedure invocation latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embedscript",
			Name:      "cache_hits_total",
			Help:      "Script cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embedscript",
			Name:      "cache_misses_total",
			Help:      "Script cache misses.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embedscript",
			Name:      "invoke_rate_limited_total",
			Help:      "Invocations rejected by the rate limiter.",
		}),
		ActiveScripts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "embedscript",
			Name:      "loaded_scripts",
			Help:      "Number of distinct scripts currently loaded.",
		}),
	}

	c.registry.MustRegister(
		c.LoadTotal, c.CheckTotal, c.InvokeTotal, c.InvokeLatency,
		c.CacheHits, c.CacheMisses, c.RateLimited, c.ActiveScripts,
	)
	return c
}

// Registry returns the Prometheus registry for external scraping.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveLoad records the outcome of a Manager.Load call.
func (c *Collector) ObserveLoad(ok bool) {
	c.LoadTotal.WithLabelValues(outcome(ok)).Inc()
}

// ObserveCheck records the outcome of a Manager.Check call.
func (c *Collector) ObserveCheck(ok bool) {
	c.CheckTotal.WithLabelValues(outcome(ok)).Inc()
}

// ObserveInvoke records the outcome and latency of one procedure
// invocation.
func (c *Collector) ObserveInvoke(procedure string, ok bool, seconds float64) {
	c.InvokeTotal.WithLabelValues(procedure, outcome(ok)).Inc()
	c.InvokeLatency.WithLabelValues(procedure).Observe(seconds)
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
