// Package metrics holds the Prometheus collectors of the print server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics groups the collectors
type Metrics struct {
	registry *prometheus.Registry

	PrintJobs   *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
	Dispatches  *prometheus.CounterVec
	LedgerItems prometheus.Gauge
	Printers    prometheus.Gauge
}

// New creates the collectors and registers them on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PrintJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kot_print_jobs_total",
				Help: "Print jobs submitted to the bridge by printer, kind and outcome.",
			},
			[]string{"printer", "kind", "outcome"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kot_print_job_duration_seconds",
				Help:    "Time from submission to bridge outcome.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"printer"},
		),
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kot_dispatches_total",
				Help: "KOT dispatch attempts by result.",
			},
			[]string{"result"},
		),
		LedgerItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kot_ledger_items",
			Help: "Line items pending in the order ledger.",
		}),
		Printers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kot_directory_printers",
			Help: "Printers in the directory after the last refresh.",
		}),
	}

	m.registry.MustRegister(
		m.PrintJobs,
		m.JobDuration,
		m.Dispatches,
		m.LedgerItems,
		m.Printers,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveJob records one bridge submission. Safe on a nil *Metrics.
func (m *Metrics) ObserveJob(printer, kind string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.PrintJobs.WithLabelValues(printer, kind, outcome).Inc()
	m.JobDuration.WithLabelValues(printer).Observe(elapsed.Seconds())
}

// ObserveSkipped records a group that never reached the bridge
func (m *Metrics) ObserveSkipped(printer, kind string) {
	if m == nil {
		return
	}
	m.PrintJobs.WithLabelValues(printer, kind, OutcomeSkipped).Inc()
}

// ObserveDispatch records the result of a dispatch attempt
func (m *Metrics) ObserveDispatch(result string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(result).Inc()
}

// SetLedgerItems tracks the ledger size
func (m *Metrics) SetLedgerItems(n int) {
	if m == nil {
		return
	}
	m.LedgerItems.Set(float64(n))
}

// SetPrinters tracks the directory size
func (m *Metrics) SetPrinters(n int) {
	if m == nil {
		return
	}
	m.Printers.Set(float64(n))
}
