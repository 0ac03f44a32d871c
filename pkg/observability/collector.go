package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics of the extractor. Each collector
// owns its registry, so tests can create as many as they need.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Extraction metrics
	NodesEmitted         *prometheus.CounterVec
	EdgesEmitted         *prometheus.CounterVec
	FieldsApplied        *prometheus.CounterVec
	FieldsDropped        prometheus.Counter
	DuplicatesSuppressed *prometheus.CounterVec
	FallbackTrims        prometheus.Counter
	FallbackBytes        prometheus.Counter
	SessionsFinished     *prometheus.CounterVec
	SessionsFailed       prometheus.Counter
	SessionDuration      prometheus.Histogram
	ActiveSessions       prometheus.Gauge
}

// NewCollector creates a new metrics collector with the given namespace
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
		NodesEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_emitted_total",
				Help:      "Total number of nodes emitted, by category",
			},
			[]string{"category"},
		),
		EdgesEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_emitted_total",
				Help:      "Total number of edges emitted, by relationship",
			},
			[]string{"relationship"},
		),
		FieldsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fields_applied_total",
				Help:      "Total number of fields applied to drafts, by key",
			},
			[]string{"key"},
		),
		FieldsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fields_dropped_total",
				Help:      "Fields lost to lossy buffer trims",
			},
		),
		DuplicatesSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicates_suppressed_total",
				Help:      "Repeated entities suppressed, by kind",
			},
			[]string{"kind"},
		),
		FallbackTrims: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_trims_total",
				Help:      "Number of lossy buffer trims",
			},
		),
		FallbackBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_trimmed_bytes_total",
				Help:      "Bytes discarded by lossy buffer trims",
			},
		),
		SessionsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_finished_total",
				Help:      "Sessions that completed, by reason",
			},
			[]string{"reason"},
		),
		SessionsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_failed_total",
				Help:      "Sessions ended by an upstream failure",
			},
		),
		SessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Duration of completed sessions in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Sessions currently registered",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.NodesEmitted,
		c.EdgesEmitted,
		c.FieldsApplied,
		c.FieldsDropped,
		c.DuplicatesSuppressed,
		c.FallbackTrims,
		c.FallbackBytes,
		c.SessionsFinished,
		c.SessionsFailed,
		c.SessionDuration,
		c.ActiveSessions,
	)

	return c
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// The methods below make the collector an engine measurement recorder.

func (c *Collector) NodeEmitted(category string) {
	c.NodesEmitted.WithLabelValues(category).Inc()
}

func (c *Collector) EdgeEmitted(relationship string) {
	c.EdgesEmitted.WithLabelValues(relationship).Inc()
}

func (c *Collector) FieldApplied(key string) {
	c.FieldsApplied.WithLabelValues(key).Inc()
}

func (c *Collector) FieldDropped() {
	c.FieldsDropped.Inc()
}

func (c *Collector) DuplicateSuppressed(kind string) {
	c.DuplicatesSuppressed.WithLabelValues(kind).Inc()
}

func (c *Collector) FallbackTrim(bytes int) {
	c.FallbackTrims.Inc()
	c.FallbackBytes.Add(float64(bytes))
}

func (c *Collector) SessionFinished(reason string, duration time.Duration) {
	c.SessionsFinished.WithLabelValues(reason).Inc()
	c.SessionDuration.Observe(duration.Seconds())
}

func (c *Collector) SessionFailed() {
	c.SessionsFailed.Inc()
}
