// Package metrics holds the prometheus collectors for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fuels_pipeline"

// Collector groups the pipeline metrics on a private registry so that
// several collectors can coexist in one process (tests, CLI + server).
type Collector struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stagesTotal   *prometheus.CounterVec
	pollAttempts  *prometheus.CounterVec
	downloadBytes *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
	runsActive    prometheus.Gauge
}

// New creates a collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"stage", "status"},
		),
		stagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stages_total",
				Help:      "Total number of finished pipeline stages",
			},
			[]string{"stage", "status"},
		),
		pollAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_attempts_total",
				Help:      "Total number of job status polls",
			},
			[]string{"stage", "result"},
		),
		downloadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_bytes_total",
				Help:      "Bytes written by artifact downloads",
			},
			[]string{"artifact"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of finished pipeline runs",
			},
			[]string{"status"},
		),
		runsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "runs_active",
				Help:      "Pipeline runs currently executing",
			},
		),
	}
}

// ObserveStage records a finished stage.
func (c *Collector) ObserveStage(stage, status string, d time.Duration) {
	c.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
	c.stagesTotal.WithLabelValues(stage, status).Inc()
}

// ObservePoll records one status poll; result is the job status or an error class.
func (c *Collector) ObservePoll(stage, result string) {
	c.pollAttempts.WithLabelValues(stage, result).Inc()
}

// ObserveDownload records bytes written for an artifact.
func (c *Collector) ObserveDownload(artifact string, n int64) {
	c.downloadBytes.WithLabelValues(artifact).Add(float64(n))
}

// RunStarted marks a run active.
func (c *Collector) RunStarted() { c.runsActive.Inc() }

// RunFinished marks a run done with the given status.
func (c *Collector) RunFinished(status string) {
	c.runsActive.Dec()
	c.runsTotal.WithLabelValues(status).Inc()
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's metrics in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
