// Package metrics exposes pipeline counters in Prometheus format. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "tara"

type Collector struct {
	registry *prometheus.Registry

	IngestOutcomes   *prometheus.CounterVec
	FilterRejections *prometheus.CounterVec
	TrimmedMembers   prometheus.Counter
	DedupeRemoved    *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New builds a collector on its own registry so tests can create as many as
// they like.
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		IngestOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "ingest_outcomes_total",
				Help:      "Candidate mentions processed, by origin and outcome.",
			},
			[]string{"origin", "status"},
		),
		FilterRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "filter_rejections_total",
				Help:      "Candidates rejected by the relevance filter, by rule.",
			},
			[]string{"rule"},
		),
		TrimmedMembers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "retention_trimmed_total",
				Help:      "Mentions removed by the retention trimmer.",
			},
		),
		DedupeRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "dedupe_removed_total",
				Help:      "Mentions removed by duplicate resolution, by pass.",
			},
			[]string{"pass"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		c.IngestOutcomes,
		c.FilterRejections,
		c.TrimmedMembers,
		c.DedupeRemoved,
		c.HTTPRequests,
		c.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry. A nil collector serves an empty registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordIngest(origin, status string) {
	if c == nil {
		return
	}
	c.IngestOutcomes.WithLabelValues(origin, status).Inc()
}

func (c *Collector) RecordRejection(rule string) {
	if c == nil {
		return
	}
	c.FilterRejections.WithLabelValues(rule).Inc()
}

func (c *Collector) RecordTrim(removed int64) {
	if c == nil || removed <= 0 {
		return
	}
	c.TrimmedMembers.Add(float64(removed))
}

func (c *Collector) RecordDedupe(pass string, removed int) {
	if c == nil || removed <= 0 {
		return
	}
	c.DedupeRemoved.WithLabelValues(pass).Add(float64(removed))
}

func (c *Collector) RecordHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
