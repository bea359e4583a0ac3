// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Message outcomes.
const (
	OutcomeRetained = "retained"
	OutcomeCleaned  = "cleaned"
	OutcomeNoPhoto  = "no_photo"
	OutcomeFailed   = "failed"
)

type Metrics struct {
	registry    *prometheus.Registry
	Messages    *prometheus.CounterVec
	StageErrors *prometheus.CounterVec
	OCRDuration prometheus.Histogram
	SinkErrors  prometheus.Counter
	InFlight    prometheus.Gauge
}

// New registers the pipeline collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telescan",
			Name:      "messages_total",
			Help:      "Messages that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telescan",
			Name:      "stage_errors_total",
			Help:      "Message-local failures, by pipeline stage.",
		}, []string{"stage"}),
		OCRDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "telescan",
			Name:      "ocr_duration_seconds",
			Help:      "Time spent in the OCR engine per image variant.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telescan",
			Name:      "sink_errors_total",
			Help:      "Match records that could not be persisted.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "telescan",
			Name:      "messages_in_flight",
			Help:      "Messages currently being processed.",
		}),
	}
	m.registry.MustRegister(m.Messages, m.StageErrors, m.OCRDuration, m.SinkErrors, m.InFlight)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
