// Package metrics exposes probe and API counters in the Prometheus format.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazz-dev/sitecheck/internal/result"
)

// Collector holds the metrics of one process in its own registry.
type Collector struct {
	registry *prometheus.Registry

	probesTotal          *prometheus.CounterVec
	attemptFailuresTotal prometheus.Counter
	batchDuration        prometheus.Histogram
	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
}

// New creates a Collector and registers its metrics.
func New() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecheck_probes_total",
				Help: "Probed targets by result (status code or Error).",
			},
			[]string{"result", "class"},
		),
		attemptFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitecheck_attempt_failures_total",
			Help: "Probe attempts that got no HTTP response.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecheck_batch_duration_seconds",
			Help:    "Wall time from dispatch to join of each batch.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecheck_api_requests_total",
				Help: "History API requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitecheck_api_request_duration_seconds",
				Help:    "History API request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	collectors := []prometheus.Collector{
		c.probesTotal,
		c.attemptFailuresTotal,
		c.batchDuration,
		c.requestsTotal,
		c.requestDuration,
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return c, nil
}

// Observe counts one joined probe result.
func (c *Collector) Observe(_ string, r result.Result) {
	c.probesTotal.WithLabelValues(r.String(), r.Class()).Inc()
}

// BatchDone records how long a batch took to join.
func (c *Collector) BatchDone(_ int, elapsed time.Duration) {
	c.batchDuration.Observe(elapsed.Seconds())
}

// AttemptFailed counts a failed probe attempt. Its signature matches
// prober.Options.OnAttemptError.
func (c *Collector) AttemptFailed(string, int, error) {
	c.attemptFailuresTotal.Inc()
}

// ObserveRequest records one API request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
