// Package metrics exposes processing counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kina2711/subscription-analytics/internal/ledger"
)

// Row outcomes.
const (
	OutcomeKept               = "kept"
	OutcomeInvalidDate        = "invalid_date"
	OutcomeUnresolvedDuration = "unresolved_duration"
)

// Metrics owns a dedicated registry so tests and multiple servers never
// collide on the global one.
type Metrics struct {
	registry   *prometheus.Registry
	rows       *prometheus.CounterVec
	zeroAmount prometheus.Counter
	ledgerRows prometheus.Counter
	runs       prometheus.Counter
	loadErrors prometheus.Counter
	duration   prometheus.Histogram
}

var _ ledger.Recorder = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_rows_total",
			Help: "Input rows processed, by outcome.",
		}, []string{"outcome"}),
		zeroAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_zero_amount_rows_total",
			Help: "Rows kept with an unreadable or zero amount.",
		}),
		ledgerRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_ledger_rows_total",
			Help: "Daily ledger rows produced.",
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_runs_total",
			Help: "Successful processing runs.",
		}),
		loadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_load_errors_total",
			Help: "Failed dataset loads.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analytics_process_seconds",
			Help:    "Time spent cleaning and expanding one input table.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.registry.MustRegister(
		m.rows, m.zeroAmount, m.ledgerRows, m.runs, m.loadErrors, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRun records the row accounting of one Process call.
func (m *Metrics) ObserveRun(r ledger.Report, elapsed time.Duration) {
	m.rows.WithLabelValues(OutcomeKept).Add(float64(r.RowsKept))
	m.rows.WithLabelValues(OutcomeInvalidDate).Add(float64(r.InvalidDate))
	m.rows.WithLabelValues(OutcomeUnresolvedDuration).Add(float64(r.UnresolvedDuration))
	m.zeroAmount.Add(float64(r.ZeroAmount))
	m.ledgerRows.Add(float64(r.LedgerRows))
	m.runs.Inc()
	m.duration.Observe(elapsed.Seconds())
}

// LoadFailed counts a dataset load that never reached processing.
func (m *Metrics) LoadFailed() {
	m.loadErrors.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
