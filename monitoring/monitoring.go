package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// MonitoringConfig represents monitoring configuration
type MonitoringConfig struct {
	// Enable monitoring
	Enabled bool `yaml:"enabled"`

	// Prometheus configuration
	Prometheus *PrometheusConfig `yaml:"prometheus,omitempty"`

	// OpenTelemetry configuration
	OpenTelemetry *OpenTelemetryConfig `yaml:"opentelemetry,omitempty"`
}

// PrometheusConfig represents Prometheus configuration
type PrometheusConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// OpenTelemetryConfig represents OpenTelemetry configuration
type OpenTelemetryConfig struct {
	Enabled        bool              `yaml:"enabled"`
	Endpoint       string            `yaml:"endpoint"`
	ServiceName    string            `yaml:"service_name"`
	ServiceVersion string            `yaml:"service_version"`
	Environment    string            `yaml:"environment"`
	Headers        map[string]string `yaml:"headers,omitempty"`
	Insecure       bool              `yaml:"insecure"`

	// Fraction of traces to keep, 0.0 to 1.0.
	SampleRate float64 `yaml:"sample_rate"`
}

// Monitor records what happens inside the fallback chain.
type Monitor interface {
	// Starts one backend attempt. The returned function must be called once with the
	// attempt's outcome, e.g. "success", "unavailable" or "failed".
	StartAttempt(ctx context.Context, backend string) (context.Context, func(outcome string))

	// Records which backend finally produced the answer of a request.
	RecordAnswer(ctx context.Context, backend string, duration time.Duration)

	// Records the result of an availability probe.
	RecordAvailability(ctx context.Context, backend string, available bool)

	Close() error
}

// MonitoringManager handles all monitoring integrations
type MonitoringManager struct {
	config     *MonitoringConfig
	prometheus *PrometheusMonitor
	otel       *OpenTelemetryMonitor
	logger     *zap.SugaredLogger
}

var _ Monitor = (*MonitoringManager)(nil)

// NewMonitoringManager creates a new monitoring manager
func NewMonitoringManager(config *MonitoringConfig, logger *zap.SugaredLogger) (*MonitoringManager, error) {
	manager := &MonitoringManager{
		config: config,
		logger: logger,
	}
	if !config.Enabled {
		return manager, nil
	}

	if config.Prometheus != nil && config.Prometheus.Enabled {
		prometheus, err := NewPrometheusMonitor(config.Prometheus, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Prometheus monitor: %w", err)
		}
		manager.prometheus = prometheus
	}

	if config.OpenTelemetry != nil && config.OpenTelemetry.Enabled {
		otel, err := NewOpenTelemetryMonitor(config.OpenTelemetry, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenTelemetry monitor: %w", err)
		}
		manager.otel = otel
	}

	return manager, nil
}

// NewNopManager returns a manager that records nothing. Useful in tests.
func NewNopManager(logger *zap.SugaredLogger) *MonitoringManager {
	return &MonitoringManager{
		config: &MonitoringConfig{},
		logger: logger,
	}
}

func (m *MonitoringManager) monitors() []Monitor {
	monitors := make([]Monitor, 0, 2)
	if m.prometheus != nil {
		monitors = append(monitors, m.prometheus)
	}
	if m.otel != nil {
		monitors = append(monitors, m.otel)
	}
	return monitors
}

// StartAttempt starts attempt tracking across all enabled monitors
func (m *MonitoringManager) StartAttempt(ctx context.Context, backend string) (context.Context, func(outcome string)) {
	var finishFuncs []func(string)
	for _, monitor := range m.monitors() {
		newCtx, finish := monitor.StartAttempt(ctx, backend)
		ctx = newCtx
		finishFuncs = append(finishFuncs, finish)
	}

	return ctx, func(outcome string) {
		for _, finish := range finishFuncs {
			finish(outcome)
		}
	}
}

func (m *MonitoringManager) RecordAnswer(ctx context.Context, backend string, duration time.Duration) {
	for _, monitor := range m.monitors() {
		monitor.RecordAnswer(ctx, backend, duration)
	}
}

func (m *MonitoringManager) RecordAvailability(ctx context.Context, backend string, available bool) {
	for _, monitor := range m.monitors() {
		monitor.RecordAvailability(ctx, backend, available)
	}
}

// Handler returns the Prometheus scrape handler, or nil when Prometheus is disabled.
func (m *MonitoringManager) Handler() http.Handler {
	if m.prometheus == nil {
		return nil
	}
	return m.prometheus.GetHandler()
}

// MetricsPath is the route the scrape handler should be mounted on.
func (m *MonitoringManager) MetricsPath() string {
	if m.prometheus == nil || m.prometheus.config.Path == "" {
		return "/metrics"
	}
	return m.prometheus.config.Path
}

// Close flushes and closes all monitors
func (m *MonitoringManager) Close() error {
	var errs []error
	for _, monitor := range m.monitors() {
		if err := monitor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("monitoring close errors: %v", errs)
	}
	return nil
}
