// Package metrics records batch-run counters and timings in a Prometheus
// registry. Runs are short-lived, so the registry is exported to a node
// exporter textfile instead of being scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mongofilm"

// Outcome label values for cleaning counters.
const (
	OutcomeKept    = "kept"
	OutcomeDropped = "dropped"
)

// Metrics holds every collector of a run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// CleaningRows counts rows per table, cleaning stage and outcome.
	// Labels: table, stage, outcome (kept, dropped)
	CleaningRows *prometheus.CounterVec

	// LoaderDocuments counts documents inserted per collection.
	// Labels: collection
	LoaderDocuments *prometheus.CounterVec

	// QueryDuration measures query execution time.
	// Labels: query
	QueryDuration *prometheus.HistogramVec

	// QueryRows is the number of rows returned by the last run of a query.
	// Labels: query
	QueryRows *prometheus.GaugeVec

	// QueryFailures counts failed query executions.
	// Labels: query
	QueryFailures *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CleaningRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cleaning",
				Name:      "rows_total",
				Help:      "Rows seen by each cleaning stage, by outcome",
			},
			[]string{"table", "stage", "outcome"},
		),
		LoaderDocuments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "loader",
				Name:      "documents_total",
				Help:      "Documents inserted into the store, by collection",
			},
			[]string{"collection"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Aggregation query execution time in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"query"},
		),
		QueryRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "rows",
				Help:      "Rows returned by the last execution of a query",
			},
			[]string{"query"},
		),
		QueryFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "failures_total",
				Help:      "Failed query executions",
			},
			[]string{"query"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordStage records the outcome of one cleaning stage on one table.
func (m *Metrics) RecordStage(table, stage string, before, after int) {
	if m == nil {
		return
	}
	m.CleaningRows.WithLabelValues(table, stage, OutcomeKept).Add(float64(after))
	if dropped := before - after; dropped > 0 {
		m.CleaningRows.WithLabelValues(table, stage, OutcomeDropped).Add(float64(dropped))
	}
}

// RecordInserted adds n inserted documents for a collection.
func (m *Metrics) RecordInserted(collection string, n int) {
	if m == nil {
		return
	}
	m.LoaderDocuments.WithLabelValues(collection).Add(float64(n))
}

// RecordQuery records one query execution.
func (m *Metrics) RecordQuery(query string, elapsed time.Duration, rows int, err error) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(query).Observe(elapsed.Seconds())
	if err != nil {
		m.QueryFailures.WithLabelValues(query).Inc()
		return
	}
	m.QueryRows.WithLabelValues(query).Set(float64(rows))
}

// WriteTextfile writes the registry in text exposition format to path.
// The write is atomic: a temporary file is renamed over path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
