// Package metrics counts run outcomes in a per-run Prometheus registry and
// exports them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Web lookup results.
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupCached  = "cached"
	LookupBlocked = "blocked"
	LookupSkipped = "skipped"
	LookupError   = "error"
)

// Recorder holds the run counters. A nil Recorder ignores every call.
type Recorder struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	webLookups   *prometheus.CounterVec
	aiCalls      *prometheus.CounterVec
	captchaTrips prometheus.Counter
	runDuration  prometheus.Gauge
}

// New registers the run metrics on a fresh registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	files := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epubsort",
			Name:      "files_total",
			Help:      "Processed files by final status.",
		},
		[]string{"final_status"},
	)
	webLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epubsort",
			Name:      "web_lookups_total",
			Help:      "Web metadata lookups by result.",
		},
		[]string{"result"},
	)
	aiCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epubsort",
			Name:      "ai_calls_total",
			Help:      "LLM calls by purpose and result.",
		},
		[]string{"purpose", "result"},
	)
	captchaTrips := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "epubsort",
			Name:      "captcha_trips_total",
			Help:      "Times Google blocked the search session.",
		},
	)
	runDuration := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "epubsort",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		},
	)

	registry.MustRegister(files, webLookups, aiCalls, captchaTrips, runDuration)

	return &Recorder{
		registry:     registry,
		files:        files,
		webLookups:   webLookups,
		aiCalls:      aiCalls,
		captchaTrips: captchaTrips,
		runDuration:  runDuration,
	}
}

func (r *Recorder) FileProcessed(finalStatus string) {
	if r == nil {
		return
	}
	r.files.WithLabelValues(finalStatus).Inc()
}

func (r *Recorder) WebLookup(result string) {
	if r == nil {
		return
	}
	r.webLookups.WithLabelValues(result).Inc()
}

// AICall records one LLM call; purpose is "translation" or "normalizer".
func (r *Recorder) AICall(purpose, result string) {
	if r == nil {
		return
	}
	r.aiCalls.WithLabelValues(purpose, result).Inc()
}

func (r *Recorder) CaptchaTrip() {
	if r == nil {
		return
	}
	r.captchaTrips.Inc()
}

func (r *Recorder) SetRunDuration(d time.Duration) {
	if r == nil {
		return
	}
	r.runDuration.Set(d.Seconds())
}

// Registry exposes the underlying registry for tests and exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
