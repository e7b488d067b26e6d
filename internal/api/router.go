// Package api builds the HTTP surface of the report service.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fraud-reports/internal/api/handlers"
	"github.com/dvloznov/fraud-reports/internal/api/middleware"
)

// Router dependencies. Jobs may be nil when the job queue is disabled.
type Router struct {
	Reports *handlers.ReportsHandler
	Jobs    *handlers.JobsHandler
	Metrics http.Handler
	// Observer receives per-request metrics. May be nil.
	Observer middleware.HTTPObserver
	Log      zerolog.Logger
}

// Handler returns the routed handler wrapped in the middleware chain.
func (rt Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/reports", getOnly(rt.Reports.List))
	mux.HandleFunc("/api/reports/generate", getOnly(rt.Reports.Generate))
	mux.HandleFunc("/api/reports/download/", getOnly(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/api/reports/download/")
		if name == "" {
			middleware.WriteError(w, http.StatusBadRequest, "File name is required")
			return
		}
		rt.Reports.Download(w, r, name)
	}))

	if rt.Jobs != nil {
		mux.HandleFunc("/api/jobs", getOnly(rt.Jobs.ListJobs))
		mux.HandleFunc("/api/jobs/", getOnly(func(w http.ResponseWriter, r *http.Request) {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			rt.Jobs.GetJob(w, r, jobID)
		}))
	}

	if rt.Metrics != nil {
		mux.Handle("/metrics", rt.Metrics)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(rt.Log),
		middleware.RequestID,
		middleware.Logger(rt.Log),
	}
	if rt.Observer != nil {
		chain = append(chain, middleware.Metrics(rt.Observer))
	}
	chain = append(chain, middleware.CORS)

	return middleware.Chain(mux, chain...)
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
