// Package metrics exposes the monitor's Prometheus instruments.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "pulse/internal/log"
)

// Rejection reasons for PeaksRejected.
const (
	ReasonFirst = "first"
	ReasonFast  = "fast"
	ReasonSlow  = "slow"
)

var (
	// Loop
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "engine",
		Name:      "ticks_total",
		Help:      "Total detector ticks",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pulse",
		Subsystem: "engine",
		Name:      "tick_duration_seconds",
		Help:      "Time spent reading, analysing and publishing one tick",
		Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02},
	})

	SourceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "engine",
		Name:      "source_errors_total",
		Help:      "Total failed sensor reads",
	})

	// Detector
	PeaksAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "detector",
		Name:      "peaks_accepted_total",
		Help:      "Total peaks accepted as beats",
	})

	PeaksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "detector",
		Name:      "peaks_rejected_total",
		Help:      "Total releases that did not produce a beat",
	}, []string{"reason"})

	BPM = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulse",
		Subsystem: "detector",
		Name:      "bpm",
		Help:      "Smoothed heart rate, 0 when unknown",
	})

	Envelope = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulse",
		Subsystem: "detector",
		Name:      "envelope",
		Help:      "Fused deviation from baseline",
	})

	Z = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulse",
		Subsystem: "detector",
		Name:      "z",
		Help:      "Normalized envelope",
	})

	EnvelopeMean = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulse",
		Subsystem: "detector",
		Name:      "envelope_mean",
		Help:      "Running mean the envelope is scored against",
	})

	EnvelopeMAD = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulse",
		Subsystem: "detector",
		Name:      "envelope_mad",
		Help:      "Running mean absolute deviation of the envelope, before flooring",
	})

	// Events
	AlertTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "events",
		Name:      "transitions_total",
		Help:      "Total alert phase transitions by target phase",
	}, []string{"to"})

	EventsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "events",
		Name:      "completed_total",
		Help:      "Total ACTIVE episodes that ended",
	})

	EventLogErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "events",
		Name:      "log_errors_total",
		Help:      "Total failed event log writes",
	})

	// Transport
	TransportFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "transport",
		Name:      "failures_total",
		Help:      "Total failed sends by transport",
	}, []string{"transport"})

	ReadingsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "transport",
		Name:      "dropped_total",
		Help:      "Total readings refused by a full queue or an open circuit",
	})

	RecordingErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "recording",
		Name:      "errors_total",
		Help:      "Total failed raw sample writes",
	})
)

// Handler returns a mux serving /metrics and /healthz.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			applog.Warnf("Metrics: failed to write health response: %v", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes Handler on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Warnf("Metrics: shutdown error: %v", err)
		}
	}()

	applog.Infof("Metrics: Serving on %s", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
