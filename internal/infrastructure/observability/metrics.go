// Package observability provides Prometheus metrics for the engine.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Singleton guard so tests creating multiple containers do not hit
	// duplicate registration panics.
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the application.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Engine metrics
	Compositions        *prometheus.CounterVec
	CompositionDuration prometheus.Histogram
	SelectedFragments   prometheus.Histogram
	GraphBuilds         prometheus.Counter
	GraphNodes          prometheus.Histogram
	Predictions         *prometheus.CounterVec
	StrategyFailures    *prometheus.CounterVec
	UsageEventsTracked  prometheus.Counter

	// Embedding provider metrics
	EmbeddingCalls    *prometheus.CounterVec
	EmbeddingDuration prometheus.Histogram
}

// NewCollector creates (or returns the existing) metrics collector.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

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
		Compositions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compositions_total",
				Help:      "Total number of score-and-select requests",
			},
			[]string{"outcome"},
		),
		CompositionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "composition_duration_seconds",
				Help:      "Score-and-select request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		SelectedFragments: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "composition_selected_fragments",
				Help:      "Number of fragments selected per composition",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
			},
		),
		GraphBuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_builds_total",
				Help:      "Total number of similarity graph builds",
			},
		),
		GraphNodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Number of nodes per built graph",
				Buckets:   []float64{0, 10, 25, 50, 100, 150, 200},
			},
		),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Total number of suggestions returned, by strategy",
			},
			[]string{"source"},
		),
		StrategyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prediction_strategy_failures_total",
				Help:      "Prediction strategies omitted due to failure or timeout",
			},
			[]string{"source"},
		),
		UsageEventsTracked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_events_tracked_total",
				Help:      "Total number of usage events appended",
			},
		),
		EmbeddingCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_calls_total",
				Help:      "Total number of embedding provider calls",
			},
			[]string{"status"},
		),
		EmbeddingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "embedding_call_duration_seconds",
				Help:      "Embedding provider call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Compositions,
		c.CompositionDuration,
		c.SelectedFragments,
		c.GraphBuilds,
		c.GraphNodes,
		c.Predictions,
		c.StrategyFailures,
		c.UsageEventsTracked,
		c.EmbeddingCalls,
		c.EmbeddingDuration,
	)

	globalCollector = c
	return c
}

// Registry exposes the collector's registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
