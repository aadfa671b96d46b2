package monitoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func newTestOpenTelemetryMonitor(t *testing.T) (*OpenTelemetryMonitor, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	monitor, err := newOpenTelemetryMonitorWithProviders(
		&OpenTelemetryConfig{Enabled: true, ServiceName: "nyaysetu"},
		zaptest.NewLogger(t).Sugar(),
		sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
	)
	require.NoError(t, err)
	return monitor, recorder, reader
}

func TestOpenTelemetryMonitor_StartAttempt(t *testing.T) {
	monitor, recorder, _ := newTestOpenTelemetryMonitor(t)

	_, finish := monitor.StartAttempt(context.Background(), "huggingface")
	finish("failed")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "backend.huggingface", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("outcome", "failed"))
}

func TestOpenTelemetryMonitor_Metrics(t *testing.T) {
	monitor, _, reader := newTestOpenTelemetryMonitor(t)

	_, finish := monitor.StartAttempt(context.Background(), "local")
	finish("success")
	monitor.RecordAvailability(context.Background(), "local", true)

	var collected metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &collected))

	names := map[string]bool{}
	for _, scope := range collected.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["nyaysetu_backend_attempts_total"])
	assert.True(t, names["nyaysetu_backend_attempt_duration_seconds"])
	assert.True(t, names["nyaysetu_backend_available"])

	assert.NoError(t, monitor.Close())
}

func TestSampleRate(t *testing.T) {
	assert.Equal(t, 1.0, sampleRate(&OpenTelemetryConfig{}))
	assert.Equal(t, 1.0, sampleRate(&OpenTelemetryConfig{SampleRate: 3}))
	assert.Equal(t, 0.25, sampleRate(&OpenTelemetryConfig{SampleRate: 0.25}))
}
