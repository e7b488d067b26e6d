package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fraud-reports/internal/api/handlers"
	artifacts "github.com/dvloznov/fraud-reports/internal/artifactstore/inmemory"
	jobsinmemory "github.com/dvloznov/fraud-reports/internal/jobs/inmemory"
	"github.com/dvloznov/fraud-reports/internal/metrics"
	records "github.com/dvloznov/fraud-reports/internal/recordstore/inmemory"
	"github.com/dvloznov/fraud-reports/internal/reports"
)

const publicURL = "http://reports.test"

func newServer(t *testing.T) (*httptest.Server, *records.Store) {
	t.Helper()
	recs := records.NewStore()
	arts := artifacts.NewStore()
	m := metrics.New()

	prov := reports.NewProvisioner(arts, reports.DefaultAccessPolicy(), zerolog.Nop())
	gen := reports.NewGenerator(recs, arts, prov, reports.NewLinkBuilder(publicURL), zerolog.Nop(), reports.WithRecorder(m))

	srv := httptest.NewServer(Router{
		Reports:  handlers.NewReportsHandler(gen, reports.NewCatalog(recs, arts), zerolog.Nop()),
		Jobs:     handlers.NewJobsHandler(jobsinmemory.NewStore(), zerolog.Nop()),
		Metrics:  m.Handler(),
		Observer: m,
		Log:      zerolog.Nop(),
	}.Handler())
	t.Cleanup(srv.Close)
	return srv, recs
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf strings.Builder
	_, err = io.Copy(&buf, resp.Body)
	require.NoError(t, err)
	return resp, []byte(buf.String())
}

func TestRouter_GenerateThenDownloadLink(t *testing.T) {
	srv, recs := newServer(t)
	require.NoError(t, recs.Append(context.Background(), "1234.12345678", reports.PendingRecord(`{"valor":99.9}`)))

	resp, body := get(t, srv.URL+"/api/reports/generate?account=1234.12345678")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var generated struct {
		Link string `json:"link"`
	}
	require.NoError(t, json.Unmarshal(body, &generated))

	require.True(t, strings.HasPrefix(generated.Link, publicURL+"/api/reports/download/"), generated.Link)

	resp, body = get(t, srv.URL+strings.TrimPrefix(generated.Link, publicURL))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, `[{"valor":99.9}]`, string(body))

	resp, body = get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `fraud_reports_generate_total{outcome="created"} 1`)
	assert.Contains(t, string(body), `route="/api/reports/download/{name}"`)
}

func TestRouter_Statuses(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/reports?account=1234.12345678", http.StatusOK},
		{http.MethodGet, "/api/reports?account=1", http.StatusBadRequest},
		{http.MethodPost, "/api/reports/generate?account=1234.12345678", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/reports/download/", http.StatusBadRequest},
		{http.MethodGet, "/api/reports/download/missing_report", http.StatusNotFound},
		{http.MethodGet, "/api/reports/download/bad%20name", http.StatusBadRequest},
		{http.MethodGet, "/api/jobs", http.StatusOK},
		{http.MethodGet, "/api/jobs/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.want, resp.StatusCode, "%s %s", tt.method, tt.path)
	}
}
