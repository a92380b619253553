// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the upload,
// transcode, and delivery pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TranscodeRunsTotal counts completed orchestration runs by result.
	TranscodeRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidserve_transcode_runs_total",
		Help: "Total number of completed transcode runs by result",
	}, []string{"result"})

	// TranscodeDuration tracks wall-clock duration of orchestration runs.
	TranscodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidserve_transcode_duration_seconds",
		Help:    "Wall-clock duration of transcode runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// TranscodeActive tracks the number of encoder processes running right now.
	TranscodeActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidserve_transcode_active",
		Help: "Number of currently running transcode runs",
	})
)

// RecordTranscodeRun counts a completed run ("success" or "failure").
func RecordTranscodeRun(result string) {
	TranscodeRunsTotal.WithLabelValues(result).Inc()
}

// ObserveTranscodeDuration records a run's wall-clock duration.
func ObserveTranscodeDuration(d time.Duration) {
	TranscodeDuration.Observe(d.Seconds())
}

// IncTranscodeActive marks one more encoder process running.
func IncTranscodeActive() {
	TranscodeActive.Inc()
}

// DecTranscodeActive marks one encoder process finished.
func DecTranscodeActive() {
	TranscodeActive.Dec()
}
