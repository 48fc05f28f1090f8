package hooks

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Skryldev/photosync/core"
)

// PrometheusMetrics exports run observations as Prometheus collectors on a
// private registry.  A sync is a short-lived batch job, so the usual way to
// publish is WriteTextfile into a node_exporter textfile directory.
type PrometheusMetrics struct {
	reg *prometheus.Registry

	stepDuration *prometheus.HistogramVec
	bytes        *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	lastRun      prometheus.Gauge
}

// NewPrometheusMetrics registers the photosync collectors on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	p := &PrometheusMetrics{
		reg: prometheus.NewRegistry(),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "photosync",
				Name:      "step_duration_seconds",
				Help:      "Duration of each decode, fit and encode step.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photosync",
				Name:      "bytes_total",
				Help:      "Bytes read from sources and written to the store.",
			},
			[]string{"kind"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photosync",
				Name:      "candidates_total",
				Help:      "Candidates by terminal state.",
			},
			[]string{"state"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photosync",
				Name:      "errors_total",
				Help:      "Errors by operation and category.",
			},
			[]string{"op", "category"},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "photosync",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time at which the metrics file was last written.",
			},
		),
	}
	p.reg.MustRegister(p.stepDuration, p.bytes, p.outcomes, p.errors, p.lastRun)
	return p
}

// Registry exposes the underlying registry, e.g. for promhttp or a test gatherer.
func (p *PrometheusMetrics) Registry() *prometheus.Registry { return p.reg }

func (p *PrometheusMetrics) RecordStepTime(stepName string, d time.Duration) {
	p.stepDuration.WithLabelValues(stepName).Observe(d.Seconds())
}

func (p *PrometheusMetrics) RecordBytes(kind string, n int64) {
	if n > 0 {
		p.bytes.WithLabelValues(kind).Add(float64(n))
	}
}

func (p *PrometheusMetrics) RecordOutcome(state string) {
	p.outcomes.WithLabelValues(state).Inc()
}

func (p *PrometheusMetrics) RecordError(op string, category string) {
	p.errors.WithLabelValues(op, category).Inc()
}

// WriteTextfile stamps the last-run gauge and writes every collector to path
// in the text exposition format.  The write is atomic.
func (p *PrometheusMetrics) WriteTextfile(path string) error {
	p.lastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// ── Fan-out ───────────────────────────────────────────────────────────────────

type multiMetrics []core.MetricsCollector

// Tee returns a collector that forwards every observation to each non-nil
// collector in order.
func Tee(collectors ...core.MetricsCollector) core.MetricsCollector {
	var out multiMetrics
	for _, c := range collectors {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (m multiMetrics) RecordStepTime(stepName string, d time.Duration) {
	for _, c := range m {
		c.RecordStepTime(stepName, d)
	}
}

func (m multiMetrics) RecordBytes(kind string, n int64) {
	for _, c := range m {
		c.RecordBytes(kind, n)
	}
}

func (m multiMetrics) RecordOutcome(state string) {
	for _, c := range m {
		c.RecordOutcome(state)
	}
}

func (m multiMetrics) RecordError(op string, category string) {
	for _, c := range m {
		c.RecordError(op, category)
	}
}

var (
	_ core.MetricsCollector = (*PrometheusMetrics)(nil)
	_ core.MetricsCollector = multiMetrics(nil)
)
