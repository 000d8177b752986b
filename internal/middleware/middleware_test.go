package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*mux.Router, *Metrics, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	m := NewMetrics("unit")
	r := mux.NewRouter()
	r.Use(Logging(logger), m.Middleware())
	r.HandleFunc("/user/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
	r.Handle("/metrics", m.Handler())
	return r, m, hook
}

func TestLogging_RecordsRequest(t *testing.T) {
	r, _, hook := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/user/7", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "req-1", rr.Header().Get(RequestIDHeader))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, len("short and stout"), entry.Data["bytes"])
}

func TestLogging_GeneratesRequestID(t *testing.T) {
	r, _, _ := newRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/user/1", nil))
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
}

func TestMetrics_ExposesRouteTemplate(t *testing.T) {
	r, _, _ := newRouter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/9", nil))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `apiscope_http_requests_total{code="418",method="GET",route="/user/{id}",service="unit"} 1`), text)
}
