package obs_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-admin/internal/common"
	"github.com/noah-isme/bundle-admin/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("bundle", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestRequestLoggerIncludesShop(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "info")
	handler := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bundles", nil)
	req = req.WithContext(common.WithShop(req.Context(), "demo.myshopify.com"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Contains(t, buf.String(), `"shop":"demo.myshopify.com"`)
	require.Contains(t, buf.String(), `"status":202`)
	require.Contains(t, buf.String(), `"message":"http_request"`)
}

func TestDomainMetricsRegisterOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("bundle", registry)
	obs.MustRegisterDomainMetrics("bundle", registry)

	obs.IncBundleOperation("create", "ok")
	obs.IncWebhook("PRODUCTS_UPDATE", "enqueued")
	require.Equal(t, float64(1), testutil.ToFloat64(obs.BundleOperationsTotal.WithLabelValues("create", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.WebhookReceivedTotal.WithLabelValues("PRODUCTS_UPDATE", "enqueued")))
}
