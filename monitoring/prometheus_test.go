package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestPrometheusMonitor(t *testing.T) *PrometheusMonitor {
	logger := zaptest.NewLogger(t).Sugar()
	monitor, err := NewPrometheusMonitor(&PrometheusConfig{
		Enabled:   true,
		Namespace: "nyaysetu",
	}, logger)
	require.NoError(t, err)
	return monitor
}

func TestPrometheusMonitor_StartAttempt(t *testing.T) {
	monitor := newTestPrometheusMonitor(t)

	_, finish := monitor.StartAttempt(context.Background(), "local")
	finish("failed")
	_, finish = monitor.StartAttempt(context.Background(), "local")
	finish("failed")
	_, finish = monitor.StartAttempt(context.Background(), "huggingface")
	finish("success")

	assert.Equal(t, 2.0, testutil.ToFloat64(monitor.attemptsTotal.WithLabelValues("local", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(monitor.attemptsTotal.WithLabelValues("huggingface", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(monitor.attemptsTotal.WithLabelValues("huggingface", "failed")))
}

func TestPrometheusMonitor_RecordAnswer(t *testing.T) {
	monitor := newTestPrometheusMonitor(t)

	monitor.RecordAnswer(context.Background(), "static_fallback", 120*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(monitor.answersTotal.WithLabelValues("static_fallback")))
	assert.Equal(t, 1, testutil.CollectAndCount(monitor.answerDuration))
}

func TestPrometheusMonitor_RecordAvailability(t *testing.T) {
	monitor := newTestPrometheusMonitor(t)

	monitor.RecordAvailability(context.Background(), "local", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(monitor.backendAvailable.WithLabelValues("local")))

	monitor.RecordAvailability(context.Background(), "local", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(monitor.backendAvailable.WithLabelValues("local")))
}

func TestPrometheusMonitor_GetHandler(t *testing.T) {
	monitor := newTestPrometheusMonitor(t)
	monitor.RecordAvailability(context.Background(), "local", true)

	recorder := httptest.NewRecorder()
	monitor.GetHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `nyaysetu_backend_available{backend="local"} 1`)
}
