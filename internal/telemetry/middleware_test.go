package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestHTTPMetrics_Middleware(t *testing.T) {
	t.Parallel()

	t.Run("passes through when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *HTTPMetrics
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})

		rr := httptest.NewRecorder()
		metrics.Middleware(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/hi", nil))

		assert.Equal(t, http.StatusTeapot, rr.Code)
	})

	t.Run("records route pattern instead of raw path", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewHTTPMetrics(mp)
		require.NoError(t, err)

		r := chi.NewRouter()
		r.Use(metrics.Middleware)
		r.Get("/game/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/game/2", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		found := collect(t, reader, HTTPMetricsMeterName)
		total, ok := found["joingroup_http_requests_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, total.DataPoints, 1)

		route, _ := total.DataPoints[0].Attributes.Value("route")
		assert.Equal(t, "/game/{id}", route.AsString())
		status, _ := total.DataPoints[0].Attributes.Value("status_code")
		assert.Equal(t, "200", status.AsString())
	})
}

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("nil provider passes through", func(t *testing.T) {
		t.Parallel()

		called := false
		handler := TracingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hi", nil))
		assert.True(t, called)
	})

	t.Run("span is named after the route and marks errors", func(t *testing.T) {
		t.Parallel()

		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		defer func() { _ = tp.Shutdown(context.Background()) }()

		r := chi.NewRouter()
		r.Use(TracingMiddleware(tp))
		r.Get("/profile/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/profile/9", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "GET /profile/{id}", spans[0].Name())
		assert.Equal(t, "Not Found", spans[0].Status().Description)
	})
}

func TestRoutePattern_Unrouted(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/whatever", nil)
	assert.Equal(t, unknownRoute, routePattern(req))
}
