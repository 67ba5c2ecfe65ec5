// Package metrics records what the update engine did. A nil *Recorder is
// valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "modsync"

// Recorder holds the engine's collectors.
type Recorder struct {
	gatherer prometheus.Gatherer

	artifacts       *prometheus.CounterVec
	downloads       *prometheus.CounterVec
	identifications *prometheus.CounterVec
	toggles         *prometheus.CounterVec
	duration        prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: reg,

		artifacts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "artifacts_total",
			Help:      "Artifacts processed by the update engine, by outcome",
		}, []string{"status"}),

		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "downloads_total",
			Help:      "Download attempts, by provider",
		}, []string{"provider"}),

		identifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "identifications_total",
			Help:      "Identity resolutions, by method",
		}, []string{"method"}),

		toggles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "toggles_total",
			Help:      "Toggle renames, by target state and result",
		}, []string{"state", "result"}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of one artifact's pipeline",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// Outcome counts one finished artifact pipeline.
func (r *Recorder) Outcome(status string, took time.Duration) {
	if r == nil {
		return
	}
	r.artifacts.WithLabelValues(status).Inc()
	r.duration.Observe(took.Seconds())
}

// Download counts one download attempt.
func (r *Recorder) Download(provider string) {
	if r == nil {
		return
	}
	r.downloads.WithLabelValues(provider).Inc()
}

// Identified counts one identity resolution. method is "record" or "inferred".
func (r *Recorder) Identified(method string) {
	if r == nil {
		return
	}
	r.identifications.WithLabelValues(method).Inc()
}

// Toggle counts one toggle result.
func (r *Recorder) Toggle(state string, ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.toggles.WithLabelValues(state, result).Inc()
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for node_exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.gatherer)
}
