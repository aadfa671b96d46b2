package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PrometheusMonitor implements monitoring using Prometheus
type PrometheusMonitor struct {
	config   *PrometheusConfig
	registry *prometheus.Registry
	logger   *zap.SugaredLogger

	attemptsTotal    *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	answersTotal     *prometheus.CounterVec
	answerDuration   *prometheus.HistogramVec
	backendAvailable *prometheus.GaugeVec
}

var _ Monitor = (*PrometheusMonitor)(nil)

// NewPrometheusMonitor creates a new Prometheus monitor
func NewPrometheusMonitor(config *PrometheusConfig, logger *zap.SugaredLogger) (*PrometheusMonitor, error) {
	pm := &PrometheusMonitor{
		config:   config,
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	if err := pm.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return pm, nil
}

func (p *PrometheusMonitor) initializeMetrics() error {
	namespace := p.config.Namespace
	subsystem := p.config.Subsystem

	p.attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backend_attempts_total",
			Help:      "Total number of backend attempts by outcome",
		},
		[]string{"backend", "outcome"},
	)

	// Generation calls time out at 30s by default, so the buckets reach past it.
	p.attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backend_attempt_duration_seconds",
			Help:      "Backend attempt duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"backend", "outcome"},
	)

	p.answersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "answers_total",
			Help:      "Total number of answers by the backend that produced them",
		},
		[]string{"backend"},
	)

	p.answerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "answer_duration_seconds",
			Help:      "Time spent walking the fallback chain in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 90.0},
		},
		[]string{"backend"},
	)

	p.backendAvailable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backend_available",
			Help:      "1 if the last availability probe succeeded, 0 otherwise",
		},
		[]string{"backend"},
	)

	collectors := []prometheus.Collector{
		p.attemptsTotal,
		p.attemptDuration,
		p.answersTotal,
		p.answerDuration,
		p.backendAvailable,
	}

	for _, collector := range collectors {
		if err := p.registry.Register(collector); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return nil
}

func (p *PrometheusMonitor) StartAttempt(ctx context.Context, backend string) (context.Context, func(outcome string)) {
	start := time.Now()

	return ctx, func(outcome string) {
		labels := prometheus.Labels{"backend": backend, "outcome": outcome}
		p.attemptsTotal.With(labels).Inc()
		p.attemptDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

func (p *PrometheusMonitor) RecordAnswer(ctx context.Context, backend string, duration time.Duration) {
	labels := prometheus.Labels{"backend": backend}
	p.answersTotal.With(labels).Inc()
	p.answerDuration.With(labels).Observe(duration.Seconds())
}

func (p *PrometheusMonitor) RecordAvailability(ctx context.Context, backend string, available bool) {
	value := 0.0
	if available {
		value = 1.0
	}
	p.backendAvailable.With(prometheus.Labels{"backend": backend}).Set(value)
}

// GetHandler returns the Prometheus HTTP handler
func (p *PrometheusMonitor) GetHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Close closes the monitor (no-op for Prometheus)
func (p *PrometheusMonitor) Close() error {
	return nil
}
