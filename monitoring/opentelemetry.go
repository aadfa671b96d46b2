package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/nyaysetu/nyaysetu"

// OpenTelemetryMonitor implements monitoring using OpenTelemetry
type OpenTelemetryMonitor struct {
	config         *OpenTelemetryConfig
	logger         *zap.SugaredLogger
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	attemptCounter  metric.Int64Counter
	attemptDuration metric.Float64Histogram
	answerCounter   metric.Int64Counter
	answerDuration  metric.Float64Histogram
	availability    metric.Int64Gauge
}

var _ Monitor = (*OpenTelemetryMonitor)(nil)

// NewOpenTelemetryMonitor creates a monitor exporting traces over OTLP/HTTP and
// metrics over OTLP/gRPC to the configured collector.
func NewOpenTelemetryMonitor(config *OpenTelemetryConfig, logger *zap.SugaredLogger) (*OpenTelemetryMonitor, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("OpenTelemetry endpoint is required")
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	metricOptions := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(config.Endpoint),
		otlpmetricgrpc.WithHeaders(config.Headers),
	}
	traceOptions := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithHeaders(config.Headers),
	}
	if config.Insecure {
		metricOptions = append(metricOptions, otlpmetricgrpc.WithInsecure())
		traceOptions = append(traceOptions, otlptracehttp.WithInsecure())
	}

	metricExporter, err := otlpmetricgrpc.New(context.Background(), metricOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	traceExporter, err := otlptracehttp.New(context.Background(), traceOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate(config)))),
	)

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	return newOpenTelemetryMonitorWithProviders(config, logger, meterProvider, tracerProvider)
}

func newOpenTelemetryMonitorWithProviders(
	config *OpenTelemetryConfig,
	logger *zap.SugaredLogger,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) (*OpenTelemetryMonitor, error) {
	o := &OpenTelemetryMonitor{
		config:         config,
		logger:         logger,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(instrumentationName),
	}
	if err := o.createMetrics(meterProvider.Meter(instrumentationName)); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *OpenTelemetryMonitor) createMetrics(meter metric.Meter) error {
	var err error

	o.attemptCounter, err = meter.Int64Counter(
		"nyaysetu_backend_attempts_total",
		metric.WithDescription("Total number of backend attempts by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create attempt counter: %w", err)
	}

	o.attemptDuration, err = meter.Float64Histogram(
		"nyaysetu_backend_attempt_duration_seconds",
		metric.WithDescription("Backend attempt duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create attempt duration histogram: %w", err)
	}

	o.answerCounter, err = meter.Int64Counter(
		"nyaysetu_answers_total",
		metric.WithDescription("Total number of answers by the backend that produced them"),
	)
	if err != nil {
		return fmt.Errorf("failed to create answer counter: %w", err)
	}

	o.answerDuration, err = meter.Float64Histogram(
		"nyaysetu_answer_duration_seconds",
		metric.WithDescription("Time spent walking the fallback chain in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create answer duration histogram: %w", err)
	}

	o.availability, err = meter.Int64Gauge(
		"nyaysetu_backend_available",
		metric.WithDescription("1 if the last availability probe succeeded, 0 otherwise"),
	)
	if err != nil {
		return fmt.Errorf("failed to create availability gauge: %w", err)
	}

	return nil
}

func (o *OpenTelemetryMonitor) StartAttempt(ctx context.Context, backend string) (context.Context, func(outcome string)) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "backend."+backend,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("backend", backend)),
	)

	return ctx, func(outcome string) {
		attrs := []attribute.KeyValue{
			attribute.String("backend", backend),
			attribute.String("outcome", outcome),
		}
		o.attemptCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
		o.attemptDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))

		span.SetAttributes(attribute.String("outcome", outcome))
		if outcome == "failed" {
			span.SetStatus(codes.Error, "backend attempt failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (o *OpenTelemetryMonitor) RecordAnswer(ctx context.Context, backend string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("backend", backend))
	o.answerCounter.Add(ctx, 1, attrs)
	o.answerDuration.Record(ctx, duration.Seconds(), attrs)
}

func (o *OpenTelemetryMonitor) RecordAvailability(ctx context.Context, backend string, available bool) {
	var value int64
	if available {
		value = 1
	}
	o.availability.Record(ctx, value, metric.WithAttributes(attribute.String("backend", backend)))
}

// Close flushes pending telemetry and shuts down both providers.
func (o *OpenTelemetryMonitor) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := o.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider: %w", err))
	}
	if err := o.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to shut down OpenTelemetry: %v", errs)
	}
	return nil
}

func sampleRate(config *OpenTelemetryConfig) float64 {
	if config.SampleRate <= 0 || config.SampleRate > 1 {
		return 1.0
	}
	return config.SampleRate
}
