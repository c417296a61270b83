package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dt-pm-tools/confluence-sync/internal/syncer"
)

const namespace = "confluence_sync"

// Metrics collects the outcome of one sync run. Each run uses its own
// registry; scheduled runs export it through the node exporter textfile
// collector.
type Metrics struct {
	registry *prometheus.Registry

	documents      *prometheus.CounterVec
	duration       prometheus.Histogram
	lastRun        prometheus.Gauge
	lastRunFailed  prometheus.Gauge
	lastRunSeconds prometheus.Gauge
}

// NewMetrics creates and registers the run metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_total",
				Help:      "Documents processed, by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_duration_seconds",
				Help:      "Time to sync one document in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		lastRunFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_failed",
			Help:      "1 if any document failed in the last run, else 0.",
		}),
		lastRunSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run in seconds.",
		}),
	}
	m.registry.MustRegister(m.documents, m.duration, m.lastRun, m.lastRunFailed, m.lastRunSeconds)
	for _, o := range syncer.Outcomes() {
		m.documents.WithLabelValues(string(o))
	}
	return m
}

// Record implements syncer.Recorder.
func (m *Metrics) Record(res syncer.Result) {
	m.documents.WithLabelValues(string(res.Outcome)).Inc()
	if res.Duration > 0 {
		m.duration.Observe(res.Duration.Seconds())
	}
}

// Finish implements syncer.Recorder.
func (m *Metrics) Finish(report *syncer.Report) {
	m.lastRun.Set(float64(report.Finished.UnixNano()) / 1e9)
	m.lastRunSeconds.Set(report.Finished.Sub(report.Started).Seconds())
	if report.Failed() {
		m.lastRunFailed.Set(1)
	} else {
		m.lastRunFailed.Set(0)
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteFile writes the metrics in text exposition format to path, atomically.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

var _ syncer.Recorder = (*Metrics)(nil)
