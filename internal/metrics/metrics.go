package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fieldsync"

// Recorder collects sync metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry        *prometheus.Registry
	uploads         *prometheus.CounterVec
	polls           *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	entries         prometheus.Gauge
	persistFailures prometheus.Counter
}

// New builds a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Payload uploads by payload kind and result.",
		}, []string{"payload", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_polls_total",
			Help:      "Inference status requests by interpreted outcome.",
		}, []string{"outcome"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Synchronization cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of synchronization cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Entries currently tracked by the store.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Snapshot saves that failed and were skipped.",
		}),
	}
	r.registry.MustRegister(r.uploads, r.polls, r.cycles, r.cycleDuration, r.entries, r.persistFailures)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveUpload counts one payload upload attempt.
func (r *Recorder) ObserveUpload(payload, result string) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(payload, result).Inc()
}

// ObservePoll counts one inference request by outcome.
func (r *Recorder) ObservePoll(outcome string) {
	if r == nil {
		return
	}
	r.polls.WithLabelValues(outcome).Inc()
}

// ObserveCycle records a finished cycle.
func (r *Recorder) ObserveCycle(result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(result).Inc()
	r.cycleDuration.Observe(elapsed.Seconds())
}

// EntriesChanged sets the tracked entry gauge.
func (r *Recorder) EntriesChanged(count int) {
	if r == nil {
		return
	}
	r.entries.Set(float64(count))
}

// PersistFailed counts a snapshot save that failed.
func (r *Recorder) PersistFailed() {
	if r == nil {
		return
	}
	r.persistFailures.Inc()
}

// WriteTextfile writes the registry in the Prometheus text format to path,
// replacing the file atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
