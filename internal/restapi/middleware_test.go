package restapi

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/metrics"
)

func TestCompressionMiddleware(t *testing.T) {
	largeResponse := strings.Repeat(`{"test": "data"}`, 1000)
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(largeResponse))
	})

	t.Run("compresses response when gzip accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		recorder := httptest.NewRecorder()

		CompressionMiddleware(testHandler).ServeHTTP(recorder, req)

		assert.Equal(t, "gzip", recorder.Header().Get("Content-Encoding"))
		reader, err := gzip.NewReader(bytes.NewReader(recorder.Body.Bytes()))
		require.NoError(t, err)
		body, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, largeResponse, string(body))
	})

	t.Run("leaves response alone without gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		recorder := httptest.NewRecorder()

		CompressionMiddleware(testHandler).ServeHTTP(recorder, req)

		assert.Empty(t, recorder.Header().Get("Content-Encoding"))
		assert.Equal(t, largeResponse, recorder.Body.String())
	})

	t.Run("skips small responses", func(t *testing.T) {
		small := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		recorder := httptest.NewRecorder()

		CompressionMiddleware(small).ServeHTTP(recorder, req)

		assert.Empty(t, recorder.Header().Get("Content-Encoding"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/api/where/current-time.json", nil)
	req.Header.Set("Origin", "https://example.org")
	recorder := httptest.NewRecorder()
	securityHeaders(next).ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusTeapot, recorder.Code)
	assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", recorder.Header().Get("X-Frame-Options"))
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/where/plan-trip.json", nil)
	recorder = httptest.NewRecorder()
	securityHeaders(next).ServeHTTP(recorder, preflight)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	collector := metrics.NewCollector(nil)
	rl := NewRateLimitMiddleware(2, time.Hour, collector)
	t.Cleanup(rl.Stop)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	call := func(key string) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/where/current-time.json?key="+key, nil))
		return recorder
	}

	assert.Equal(t, http.StatusOK, call("a").Code)
	assert.Equal(t, http.StatusOK, call("a").Code)
	limited := call("a")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "2", limited.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "Rate limit exceeded")

	assert.Equal(t, http.StatusOK, call("b").Code, "keys are limited independently")
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.RateLimited))
}

func TestRateLimitZeroRejectsEverything(t *testing.T) {
	rl := NewRateLimitMiddleware(0, time.Second, nil)
	t.Cleanup(rl.Stop)
	recorder := httptest.NewRecorder()
	rl.Handler(http.NotFoundHandler()).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Equal(t, "3600", recorder.Header().Get("Retry-After"))
}

func TestRateLimitThroughAPI(t *testing.T) {
	api := createTestApi(t, func(cfg *appconf.Config) { cfg.Server.RateLimit = 1 })

	first, _ := serveAndRetrieveEndpoint(t, api, "/api/where/current-time.json?key=TEST")
	assert.Equal(t, http.StatusOK, first.StatusCode)
	second, model := serveAndRetrieveEndpoint(t, api, "/api/where/current-time.json?key=TEST")
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, model.Code)
}

func TestRequestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger(&buf, slog.LevelInfo)
	collector := metrics.NewCollector(nil)

	handler := NewRequestLoggingMiddleware(logger, collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, logging.FromContext(r.Context()))
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/where/stop/40_Q?key=secret", nil))

	out := buf.String()
	assert.Contains(t, out, `"msg":"http_request"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"path":"/api/where/stop/40_Q"`)
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, `"component":"http_server"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("404")))
}

func TestMetricsEndpoint(t *testing.T) {
	api := createTestApi(t)
	planResp, _ := serveAndRetrieveEndpoint(t, api, "/api/where/plan-trip.json?key=TEST&fromStop=40_A&toStop=40_C&time="+millis(at(t, 7, 55)))
	require.Equal(t, http.StatusOK, planResp.StatusCode)

	resp := serveRequest(t, api, newGet("/metrics"))
	defer resp.Body.Close() // nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `planner_searches_total{outcome="ok"} 1`)
	assert.Contains(t, string(body), "planner_snapshot_version 1")
	assert.Contains(t, string(body), `planner_http_requests_total{code="200"}`)
}
