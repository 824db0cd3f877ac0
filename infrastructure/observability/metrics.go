// Package observability holds the Prometheus collector and OpenTelemetry
// tracing setup.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/domain/core/aggregates"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
)

// Collector holds all Prometheus metrics for the application. It records
// engine measurements and, subscribed as a graph observer, keeps gauges of
// the graph size.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Engine metrics
	Materializations       *prometheus.CounterVec
	MaterializationSeconds *prometheus.HistogramVec
	MaterializationRetries prometheus.Counter
	Intents                *prometheus.CounterVec

	// Graph gauges
	GraphNodes   *prometheus.GaugeVec
	GraphEdges   prometheus.Gauge
	GraphVersion prometheus.Gauge
}

var (
	_ ports.Metrics       = (*Collector)(nil)
	_ aggregates.Observer = (*Collector)(nil)
)

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
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
		Materializations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "materializations_total",
				Help:      "Answer materializations by terminal state",
			},
			[]string{"state"},
		),
		MaterializationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "materialization_duration_seconds",
				Help:      "Time from scheduling an answer to its terminal state",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"state"},
		),
		MaterializationRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "materialization_retries_total",
				Help:      "Failed answering attempts",
			},
		),
		Intents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intents_total",
				Help:      "Dispatched intents by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		GraphNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Nodes in the graph by kind",
			},
			[]string{"kind"},
		),
		GraphEdges: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_edges",
				Help:      "Edges in the graph",
			},
		),
		GraphVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_version",
				Help:      "Mutation counter of the graph",
			},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Materializations,
		c.MaterializationSeconds,
		c.MaterializationRetries,
		c.Intents,
		c.GraphNodes,
		c.GraphEdges,
		c.GraphVersion,
	)
	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// MaterializationFinished implements ports.Metrics
func (c *Collector) MaterializationFinished(state string, duration time.Duration) {
	c.Materializations.WithLabelValues(state).Inc()
	c.MaterializationSeconds.WithLabelValues(state).Observe(duration.Seconds())
}

// MaterializationRetried implements ports.Metrics
func (c *Collector) MaterializationRetried() {
	c.MaterializationRetries.Inc()
}

// IntentDispatched implements ports.Metrics
func (c *Collector) IntentDispatched(action, outcome string) {
	c.Intents.WithLabelValues(action, outcome).Inc()
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// OnGraphChanged implements aggregates.Observer
func (c *Collector) OnGraphChanged(snapshot aggregates.GraphSnapshot) {
	counts := map[valueobjects.NodeKind]int{
		valueobjects.KindQuery:   0,
		valueobjects.KindAnswer:  0,
		valueobjects.KindSources: 0,
	}
	for _, n := range snapshot.Nodes {
		counts[n.Kind()]++
	}
	for kind, n := range counts {
		c.GraphNodes.WithLabelValues(string(kind)).Set(float64(n))
	}
	c.GraphEdges.Set(float64(len(snapshot.Edges)))
	c.GraphVersion.Set(float64(snapshot.Version))
}
