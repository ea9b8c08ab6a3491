// Package metrics exposes Prometheus metrics for the delay scanner.
package metrics

import (
	"net/http"
	"time"

	"github.com/BearBump/DelayWatch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK         = "ok"
	ResultError      = "error"
	ResultSuperseded = "superseded"
	ResultLimited    = "rate_limited"
)

type Option func(*Manager)

// WithNamespace overrides the metric namespace (default "delaywatch").
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

func WithBuckets(b []float64) Option {
	return func(m *Manager) {
		if len(b) > 0 {
			m.buckets = b
		}
	}
}

type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	alerts       *prometheus.GaugeVec
	packages     prometheus.Gauge
	dataWarnings prometheus.Counter
}

// NewManager creates a manager with its own registry so tests can build many.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "delaywatch",
		buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.scansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "scanner",
		Name:      "scans_total",
		Help:      "Refresh cycles by result.",
	}, []string{"result"})
	m.scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "scanner",
		Name:      "scan_duration_seconds",
		Help:      "Time spent fetching packages and detecting alerts.",
		Buckets:   m.buckets,
	})
	m.alerts = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "scanner",
		Name:      "alerts",
		Help:      "Alerts in the latest snapshot by severity.",
	}, []string{"severity"})
	m.packages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "scanner",
		Name:      "packages",
		Help:      "Packages in the latest snapshot.",
	})
	m.dataWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "scanner",
		Name:      "data_warnings_total",
		Help:      "Packages skipped because of unusable event data.",
	})

	m.registry.MustRegister(m.scansTotal, m.scanDuration, m.alerts, m.packages, m.dataWarnings)
	return m
}

func (m *Manager) ObserveScan(result string, d time.Duration) {
	m.scansTotal.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.scanDuration.Observe(d.Seconds())
	}
}

func (m *Manager) SetSnapshot(st models.AlertStatistics, packages, warnings int) {
	m.alerts.WithLabelValues(string(models.SeverityCritical)).Set(float64(st.Critical))
	m.alerts.WithLabelValues(string(models.SeverityHigh)).Set(float64(st.High))
	m.alerts.WithLabelValues(string(models.SeverityMedium)).Set(float64(st.Medium))
	m.alerts.WithLabelValues(string(models.SeverityLow)).Set(float64(st.Low))
	m.packages.Set(float64(packages))
	m.dataWarnings.Add(float64(warnings))
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
