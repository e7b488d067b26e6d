package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/fraud-reports/internal/reports"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var _ reports.Recorder = (*Metrics)(nil)

func TestRecorder(t *testing.T) {
	m := New()

	m.ReportGenerated(3, 120)
	m.ReportGenerated(2, 80)
	m.NothingPending()
	m.GenerateFailed("put")
	m.RecordsRequeued(4)

	require.Equal(t, 2.0, testutil.ToFloat64(m.reportsGenerated.WithLabelValues("created")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.reportsGenerated.WithLabelValues("no_pending_records")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.reportsGenerated.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.generateFailures.WithLabelValues("put")))
	require.Equal(t, 5.0, testutil.ToFloat64(m.recordsReported))
	require.Equal(t, 4.0, testutil.ToFloat64(m.recordsRequeued))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/reports", http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `fraud_reports_http_requests_total{code="200",route="/api/reports"} 1`), body)
	require.True(t, strings.Contains(body, "go_goroutines"), "expected Go collector output")
}
