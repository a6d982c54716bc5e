package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the fault detection counters. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry        *prometheus.Registry
	runsTotal       *prometheus.CounterVec
	ruleEvaluations *prometheus.CounterVec
	ruleDuration    *prometheus.HistogramVec
	flaggedSamples  *prometheus.CounterVec
	runRows         prometheus.Histogram
}

var (
	once     sync.Once
	recorder *Recorder
)

// New builds a Recorder on its own registry.
func New() *Recorder {
	m := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fdd_runs_total",
			Help: "Total count of fault detection runs by site.",
		}, []string{"site"}),
		ruleEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fdd_rule_evaluations_total",
			Help: "Total count of rule evaluations by rule and status.",
		}, []string{"rule", "status"}),
		ruleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fdd_rule_duration_seconds",
			Help:    "Histogram of rule evaluation durations by rule.",
			Buckets: prometheus.DefBuckets,
		}, []string{"rule"}),
		flaggedSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fdd_flagged_samples_total",
			Help: "Total count of samples flagged as faulty by rule.",
		}, []string{"rule"}),
		runRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fdd_run_rows",
			Help:    "Histogram of rows evaluated per run.",
			Buckets: prometheus.ExponentialBuckets(60, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.ruleEvaluations,
		m.ruleDuration,
		m.flaggedSamples,
		m.runRows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Default returns the process-wide recorder.
func Default() *Recorder {
	once.Do(func() {
		recorder = New()
	})
	return recorder
}

// ObserveRun records one finished run.
func (m *Recorder) ObserveRun(site string, rows int) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(site).Inc()
	m.runRows.Observe(float64(rows))
}

// ObserveRule records one rule outcome.
func (m *Recorder) ObserveRule(rule, status string, d time.Duration, flagged int) {
	if m == nil {
		return
	}
	m.ruleEvaluations.WithLabelValues(rule, status).Inc()
	m.ruleDuration.WithLabelValues(rule).Observe(d.Seconds())
	if flagged > 0 {
		m.flaggedSamples.WithLabelValues(rule).Add(float64(flagged))
	}
}

// Gatherer exposes the registry, mainly for tests.
func (m *Recorder) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
