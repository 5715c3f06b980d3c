package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	prefix = "execbench_"

	languageLabel = "language"
	resultLabel   = "result"
	reasonLabel   = "reason"
)

// Metrics holds the collectors updated by a load run
type Metrics struct {
	checks       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	durations    *prometheus.HistogramVec
	activeActors prometheus.Gauge
	registry     *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	checks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "checks_total",
			Help: "Validated checks by language and result",
		},
		[]string{languageLabel, resultLabel},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "check_failures_total",
			Help: "Failed checks by language and failure reason",
		},
		[]string{languageLabel, reasonLabel},
	)
	durations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "request_duration_seconds",
			Help:    "Round trip time of execute requests",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{languageLabel},
	)
	activeActors := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "active_actors",
			Help: "Virtual actors currently running",
		},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(checks, failures, durations, activeActors)

	return &Metrics{
		checks:       checks,
		failures:     failures,
		durations:    durations,
		activeActors: activeActors,
		registry:     registry,
	}
}

// ObserveCheck records one validated check. duration is ignored for transport failures.
func (m *Metrics) ObserveCheck(language string, passed bool, reason string, duration time.Duration, transportErr bool) {
	if m == nil {
		return
	}
	result := "pass"
	if !passed {
		result = "fail"
		m.failures.WithLabelValues(language, reason).Inc()
	}
	m.checks.WithLabelValues(language, result).Inc()
	if !transportErr {
		m.durations.WithLabelValues(language).Observe(duration.Seconds())
	}
}

// ActorStarted increments the active actor gauge
func (m *Metrics) ActorStarted() {
	if m == nil {
		return
	}
	m.activeActors.Inc()
}

// ActorStopped decrements the active actor gauge
func (m *Metrics) ActorStopped() {
	if m == nil {
		return
	}
	m.activeActors.Dec()
}

// Handler returns the /metrics handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("serving prometheus metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
