// Package metrics exposes conversion counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gnana997/cjs2esm/pkg/converter"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
)

const namespace = "cjs2esm"

// Metrics holds the conversion collectors. Each instance owns its registry,
// so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	files      *prometheus.CounterVec
	items      *prometheus.CounterVec
	failures   *prometheus.CounterVec
	errors     prometheus.Counter
	cacheHits  prometheus.Counter
	duration   prometheus.Histogram
	inputBytes prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files converted, by outcome (changed, unchanged, partial).",
		}, []string{"outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_rewritten_total",
			Help:      "Top-level items rewritten, by rule.",
		}, []string{"rule"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_failures_total",
			Help:      "Top-level items that matched a rule but could not be rewritten, by rule.",
		}, []string{"rule"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_errors_total",
			Help:      "Files that could not be converted at all.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Conversions served from the result cache.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Time to read, convert and write one file.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		inputBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Source bytes read.",
		}),
	}

	m.registry.MustRegister(m.files, m.items, m.failures, m.errors, m.cacheHits, m.duration, m.inputBytes)
	return m
}

// RecordConversion records one converted file.
func (m *Metrics) RecordConversion(result *converter.Result, inputBytes int, elapsed time.Duration) {
	m.duration.Observe(elapsed.Seconds())
	m.inputBytes.Add(float64(inputBytes))
	if result.FromCache {
		m.cacheHits.Inc()
	}

	report := result.Report
	switch {
	case report != nil && report.Failed > 0:
		m.files.WithLabelValues("partial").Inc()
	case result.Changed:
		m.files.WithLabelValues("changed").Inc()
	default:
		m.files.WithLabelValues("unchanged").Inc()
	}

	if report == nil {
		return
	}
	for _, outcome := range report.Outcomes {
		switch outcome.Status {
		case rewrite.StatusRewritten:
			m.items.WithLabelValues(outcome.Rule).Inc()
		case rewrite.StatusFailed:
			m.failures.WithLabelValues(outcome.Rule).Inc()
		}
	}
}

// RecordError records a file that failed outright.
func (m *Metrics) RecordError(string) {
	m.errors.Inc()
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
