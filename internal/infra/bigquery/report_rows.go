package bigquery

import (
	"time"

	"github.com/dvloznov/fraud-reports/internal/reports"
)

// ReportRow is a row of the generated reports ledger table.
type ReportRow struct {
	ReportID    string    `bigquery:"report_id"`    // REQUIRED
	Account     string    `bigquery:"account"`      // REQUIRED
	ObjectName  string    `bigquery:"object_name"`  // REQUIRED
	Link        string    `bigquery:"link"`         // REQUIRED
	RecordCount int64     `bigquery:"record_count"` // REQUIRED
	SizeBytes   int64     `bigquery:"size_bytes"`   // REQUIRED
	CreatedAt   time.Time `bigquery:"created_at"`   // REQUIRED
}

// NewReportRow converts a generated report into a ledger row.
func NewReportRow(r reports.GeneratedReport) *ReportRow {
	return &ReportRow{
		ReportID:    r.ReportID,
		Account:     string(r.Account),
		ObjectName:  r.ObjectName,
		Link:        r.Link,
		RecordCount: int64(r.RecordCount),
		SizeBytes:   int64(r.SizeBytes),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// Report converts the row back into the domain type.
func (r *ReportRow) Report() reports.GeneratedReport {
	return reports.GeneratedReport{
		ReportID:    r.ReportID,
		Account:     reports.Account(r.Account),
		ObjectName:  r.ObjectName,
		Link:        r.Link,
		RecordCount: int(r.RecordCount),
		SizeBytes:   int(r.SizeBytes),
		CreatedAt:   r.CreatedAt,
	}
}
