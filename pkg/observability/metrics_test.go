package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest("/v1/predict", "200", 20*time.Millisecond)
	m.ObserveRequest("/v1/predict", "200", 30*time.Millisecond)
	m.ObserveRequest("/v1/predict", "503", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/v1/predict", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/v1/predict", "503")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ModelLoadFailures.Inc()
	m.Predictions.WithLabelValues("good").Add(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "creditrisk_model_load_failures_total 1")
	assert.Contains(t, body, `creditrisk_predictions_total{class="good"} 3`)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "console")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("loud", "json")
	assert.Error(t, err)
}
