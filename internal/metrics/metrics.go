// Package metrics exports JSON-RPC request counts and latencies to
// Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jrpc"

// unknownMethod labels requests that never resolved to a registered method,
// keeping label cardinality bounded by the method table.
const unknownMethod = "unknown"

// Collector records one sample per dispatched request. It implements
// jsonrpc.Observer.
type Collector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry, which also
// carries the Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "JSON-RPC requests by method and response code. Code 0 is success.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from decoding a JSON-RPC request to producing its response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	c.registry.MustRegister(
		c.requests,
		c.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Observe implements jsonrpc.Observer.
func (c *Collector) Observe(method string, code int, elapsed time.Duration) {
	if method == "" {
		method = unknownMethod
	}
	c.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus exposition
// format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
