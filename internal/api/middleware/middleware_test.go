package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fraud-reports/internal/logger"
)

type observation struct {
	route  string
	status int
}

type fakeObserver struct {
	seen []observation
}

func (f *fakeObserver) ObserveHTTP(route string, status int, elapsed time.Duration) {
	f.seen = append(f.seen, observation{route, status})
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestLogger_LogsRequestWithID(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	var ctxLogged bool
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logger.FromContext(r.Context())
		l.Info().Msg("inside")
		ctxLogged = true
		w.WriteHeader(http.StatusTeapot)
	}), RequestID, Logger(log))

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ctxLogged)
	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/api/reports"`)
	assert.Contains(t, out, `"message":"inside"`)
}

func TestMetrics_ObservesRouteAndStatus(t *testing.T) {
	obs := &fakeObserver{}
	h := Metrics(obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/reports/download/x_1", nil))

	require.Len(t, obs.seen, 1)
	assert.Equal(t, observation{"/api/reports/download/{name}", http.StatusNotFound}, obs.seen[0])
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/api/reports":                "/api/reports",
		"/api/reports/generate":       "/api/reports/generate",
		"/api/reports/download/a_b_c": "/api/reports/download/{name}",
		"/api/jobs":                   "/api/jobs",
		"/api/jobs/0f1e":              "/api/jobs/{id}",
		"/health":                     "/health",
		"/metrics":                    "/metrics",
		"/wp-admin/install.php":       "other",
	}
	for path, want := range tests {
		assert.Equal(t, want, RouteLabel(path), path)
	}
}

func TestRecovery_Returns500(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "contact support")
	assert.Contains(t, buf.String(), "Panic recovered")
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/reports", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
