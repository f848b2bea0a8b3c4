package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "sustain_insight"

// Metrics holds the orchestration collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	synthesisCalls *prometheus.CounterVec
	persisted      prometheus.Counter
	rejected       prometheus.Counter
	marked         prometheus.Counter
	droppedRefs    *prometheus.CounterVec
	inProgress     prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "orchestration_runs_total",
				Help:      "Orchestration runs by outcome.",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "orchestration_run_duration_seconds",
				Help:      "Duration of executed orchestration runs.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
		),
		synthesisCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "synthesis_calls_total",
				Help:      "Synthesis gateway calls by status.",
			},
			[]string{"status"},
		),
		persisted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "canonical_articles_persisted_total",
				Help:      "Canonical articles written.",
			},
		),
		rejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "synthesized_articles_rejected_total",
				Help:      "Synthesized articles dropped by validation.",
			},
		),
		marked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "raw_articles_marked_processed_total",
				Help:      "Raw articles flipped to processed.",
			},
		),
		droppedRefs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dropped_taxonomy_refs_total",
				Help:      "Category and source ids returned by the model that are not in the taxonomy.",
			},
			[]string{"kind"},
		),
		inProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "orchestration_in_progress",
				Help:      "1 while an orchestration run holds the guard.",
			},
		),
	}

	registry.MustRegister(
		m.runs,
		m.runDuration,
		m.synthesisCalls,
		m.persisted,
		m.rejected,
		m.marked,
		m.droppedRefs,
		m.inProgress,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(report Report) {
	m.runs.WithLabelValues(string(report.Outcome)).Inc()
	if report.Skipped {
		return
	}
	if !report.StartedAt.IsZero() && !report.FinishedAt.IsZero() {
		m.runDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
	m.persisted.Add(float64(report.Persisted))
	m.rejected.Add(float64(report.Rejected))
	m.marked.Add(float64(report.Marked))
	m.droppedRefs.WithLabelValues("category").Add(float64(report.DroppedCategoryRefs))
	m.droppedRefs.WithLabelValues("source").Add(float64(report.DroppedSourceRefs))
}
