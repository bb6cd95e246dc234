package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restock-alert/restock-alert/internal/metrics"
)

func TestMiddleware_RecordsStatus(t *testing.T) {
	m := metrics.NewMetrics()

	h := m.Middleware("/b", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/b", nil))
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/b", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("/b", "204")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsInFlight.WithLabelValues("/b")))
}

func TestMiddleware_DefaultStatus(t *testing.T) {
	m := metrics.NewMetrics()

	h := m.Middleware("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("/health", "200")))
}

func TestHandler_ExposesCounters(t *testing.T) {
	m := metrics.NewMetrics()
	m.Subscriptions.WithLabelValues("accepted").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `restock_alert_subscriptions_total{outcome="accepted"} 1`)
}

func TestNewMetrics_Independent(t *testing.T) {
	a := metrics.NewMetrics()
	b := metrics.NewMetrics()
	a.BeaconEvents.WithLabelValues("x").Inc()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.BeaconEvents.WithLabelValues("x")))
}
