package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const httpDurationMetric = "snowflake_catalog_http_request_duration_seconds"

// uniquePath yields a fresh label value so each run adds one series.
func uniquePath(prefix string) string {
	return fmt.Sprintf("/%s-%d", prefix, time.Now().UnixNano())
}

func TestRequestLogger_Status(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
		body    string
	}{
		{
			name:    "explicit status",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			status:  http.StatusNotFound,
		},
		{
			name:    "write without header",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"jsonrpc":"2.0"}`)) },
			status:  http.StatusOK,
			body:    `{"jsonrpc":"2.0"}`,
		},
		{
			name: "header then write",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte("queued"))
			},
			status: http.StatusAccepted,
			body:   "queued",
		},
		{
			name: "second header ignored",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.WriteHeader(http.StatusInternalServerError)
			},
			status: http.StatusBadRequest,
		},
		{
			name:    "handler writes nothing",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			status:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			rec := httptest.NewRecorder()

			RequestLogger(zap.New(core))(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, "HTTP request", entry.Message)
			assert.Equal(t, int64(tt.status), entry.ContextMap()["status"])
		})
	}
}

func TestRequestLogger_LogsMCPSession(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Mcp-Session-Id", "sess-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "sess-42", fields["session"])
	assert.Equal(t, http.MethodPost, fields["method"])
	assert.Equal(t, "/mcp", fields["path"])
}

func TestRequestLogger_InfoLevelSkipsDebugLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/mcp", nil))

	assert.Equal(t, 0, logs.Len())
}

func TestRequestLogger_RecordsMetrics(t *testing.T) {
	before, err := testutil.GatherAndCount(prometheus.DefaultGatherer, httpDurationMetric)
	require.NoError(t, err)

	handler := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, uniquePath("status"), nil))

	after, err := testutil.GatherAndCount(prometheus.DefaultGatherer, httpDurationMetric)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestRequestLogger_NilLoggerStillRecordsMetrics(t *testing.T) {
	before, err := testutil.GatherAndCount(prometheus.DefaultGatherer, httpDurationMetric)
	require.NoError(t, err)

	called := false
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, uniquePath("nil-logger"), nil))

	assert.True(t, called)
	after, err := testutil.GatherAndCount(prometheus.DefaultGatherer, httpDurationMetric)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestResponseWriter_WriteMarksHeaderWritten(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, rw.headerWritten)

	// A late WriteHeader cannot change what was already sent.
	rw.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusOK, rw.statusCode)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	var w http.ResponseWriter = &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	flusher, ok := w.(http.Flusher)
	require.True(t, ok, "wrapper must implement http.Flusher")
	flusher.Flush()

	assert.True(t, rec.Flushed)
}

func TestResponseWriter_UnwrapForResponseController(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	assert.Same(t, rec, rw.Unwrap())
	require.NoError(t, http.NewResponseController(rw).Flush())
	assert.True(t, rec.Flushed)
}
