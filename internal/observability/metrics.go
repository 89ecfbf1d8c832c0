// Package observability provides Prometheus metrics and the ops HTTP endpoints.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quantamental"

// Metrics holds all Prometheus metrics for the application.
// All methods are safe on a nil *Metrics, which records nothing.
type Metrics struct {
	FetchTotal       *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	DatasetRows      prometheus.Gauge
	FeaturesComputed prometheus.Counter
	RefreshRuns      *prometheus.CounterVec
	LastRefresh      prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers all metrics with reg. A nil reg uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	f := promauto.With(reg)

	return &Metrics{
		FetchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "fetch_total",
			Help:      "Ticker fetches by result",
		}, []string{"result"}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "fetch_duration_seconds",
			Help:      "Per-ticker fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DatasetRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "dataset_rows",
			Help:      "Rows in the last persisted price dataset",
		}),
		FeaturesComputed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "features_computed_total",
			Help:      "Feature tables computed",
		}),
		RefreshRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "refresh_runs_total",
			Help:      "Refresh runs by status",
		}, []string{"status"}),
		LastRefresh: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of the last successful refresh",
		}),
		gatherer: gatherer,
	}
}

// RecordFetch records one ticker fetch.
func (m *Metrics) RecordFetch(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchTotal.WithLabelValues(result).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// SetDatasetRows updates the persisted dataset size.
func (m *Metrics) SetDatasetRows(n int) {
	if m == nil {
		return
	}
	m.DatasetRows.Set(float64(n))
}

// AddFeatures counts computed feature tables.
func (m *Metrics) AddFeatures(n int) {
	if m == nil {
		return
	}
	m.FeaturesComputed.Add(float64(n))
}

// RecordRefresh records a refresh run outcome.
func (m *Metrics) RecordRefresh(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RefreshRuns.WithLabelValues("error").Inc()
		return
	}
	m.RefreshRuns.WithLabelValues("ok").Inc()
	m.LastRefresh.SetToCurrentTime()
}

// Handler serves /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
