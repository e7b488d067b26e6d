package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fraud-reports/internal/api/middleware"
	"github.com/dvloznov/fraud-reports/internal/logger"
	"github.com/dvloznov/fraud-reports/internal/reports"
)

// Response messages.
const (
	msgInvalidAccount    = "Provide the account in the format 0000.00000000."
	msgNothingPending    = "No flagged transactions pending for this account."
	msgNoReports         = "no reports"
	msgInvalidObjectName = "The file name is not valid."
	msgObjectNotFound    = "The file was not found."
)

// ReportGenerator is satisfied by *reports.Generator.
type ReportGenerator interface {
	Generate(ctx context.Context, account reports.Account) (reports.GenerateOutcome, error)
}

// ReportCatalog is satisfied by *reports.Catalog.
type ReportCatalog interface {
	List(ctx context.Context, account reports.Account) (reports.ListOutcome, error)
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}

// ReportsHandler handles the report endpoints. Errors are logged through the
// request scoped logger when the Logger middleware provided one, and through
// log otherwise.
type ReportsHandler struct {
	generator ReportGenerator
	catalog   ReportCatalog
	log       zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(generator ReportGenerator, catalog ReportCatalog, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		generator: generator,
		catalog:   catalog,
		log:       log,
	}
}

// Generate handles GET /api/reports/generate?account=
func (h *ReportsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	account, ok := h.account(w, r)
	if !ok {
		return
	}

	outcome, err := h.generator.Generate(r.Context(), account)
	if err != nil {
		reqLog := logger.FromContextOr(r.Context(), h.log)
		reqLog.Error().Err(err).
			Str("account", string(account)).
			Msg("Failed to generate report")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.SupportMessage)
		return
	}

	if outcome.Status == reports.GenerateNoPendingRecords {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": msgNothingPending})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"link": outcome.Link()})
}

// List handles GET /api/reports?account=
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	account, ok := h.account(w, r)
	if !ok {
		return
	}

	outcome, err := h.catalog.List(r.Context(), account)
	if err != nil {
		reqLog := logger.FromContextOr(r.Context(), h.log)
		reqLog.Error().Err(err).
			Str("account", string(account)).
			Msg("Failed to list reports")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.SupportMessage)
		return
	}

	if outcome.NoReports() {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": msgNoReports})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"links": outcome.Links,
		"count": len(outcome.Links),
	})
}

// Download handles GET /api/reports/download/{name}
func (h *ReportsHandler) Download(w http.ResponseWriter, r *http.Request, name string) {
	rc, err := h.catalog.Download(r.Context(), name)
	switch {
	case errors.Is(err, reports.ErrInvalidObjectName):
		middleware.WriteError(w, http.StatusBadRequest, msgInvalidObjectName)
		return
	case errors.Is(err, reports.ErrObjectNotFound):
		middleware.WriteError(w, http.StatusNotFound, msgObjectNotFound)
		return
	case err != nil:
		reqLog := logger.FromContextOr(r.Context(), h.log)
		reqLog.Error().Err(err).
			Str("object", name).
			Msg("Failed to download report")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.SupportMessage)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", reports.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		reqLog := logger.FromContextOr(r.Context(), h.log)
		reqLog.Warn().Err(err).Str("object", name).Msg("Download interrupted")
	}
}

// account validates the account query parameter, writing a 400 when invalid.
func (h *ReportsHandler) account(w http.ResponseWriter, r *http.Request) (reports.Account, bool) {
	account, err := reports.ValidateAccount(strings.TrimSpace(r.URL.Query().Get("account")))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, msgInvalidAccount)
		return "", false
	}
	return account, true
}
