package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/fraud-reports/internal/reports"
)

// DefaultReportsTable is the ledger table name used when none is configured.
const DefaultReportsTable = "fraud_reports"

// ReportLedger records generated reports in a BigQuery table. It holds a
// shared client for the lifetime of the process.
type ReportLedger struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

var _ reports.Ledger = (*ReportLedger)(nil)

// NewReportLedger creates a ledger with its own BigQuery client.
func NewReportLedger(ctx context.Context, project, dataset, table string) (*ReportLedger, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewReportLedger: creating client: %w", err)
	}
	return NewReportLedgerWithClient(client, dataset, table), nil
}

// NewReportLedgerWithClient creates a ledger on an existing client.
func NewReportLedgerWithClient(client *bigquery.Client, dataset, table string) *ReportLedger {
	if table == "" {
		table = DefaultReportsTable
	}
	return &ReportLedger{
		client:  client,
		project: client.Project(),
		dataset: dataset,
		table:   table,
	}
}

// Close closes the BigQuery client connection.
func (l *ReportLedger) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

// RecordReport streams a single row for report into the ledger table. The
// report ID is the insert ID, so retried inserts are deduplicated.
func (l *ReportLedger) RecordReport(ctx context.Context, report reports.GeneratedReport) error {
	inserter := l.client.Dataset(l.dataset).Table(l.table).Inserter()
	saver := &bigquery.StructSaver{
		Struct:   NewReportRow(report),
		InsertID: report.ReportID,
	}
	if err := inserter.Put(ctx, saver); err != nil {
		return fmt.Errorf("RecordReport: inserting row: %w", err)
	}
	return nil
}

// ListByAccount returns the ledger entries for account, newest first.
func (l *ReportLedger) ListByAccount(ctx context.Context, account reports.Account) ([]reports.GeneratedReport, error) {
	q := l.client.Query(listByAccountSQL(l.project, l.dataset, l.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account", Value: string(account)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: reading query: %w", err)
	}

	var out []reports.GeneratedReport
	for {
		var row ReportRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListByAccount: iterating: %w", err)
		}
		out = append(out, row.Report())
	}
	return out, nil
}

// EnsureTable creates the ledger table if it does not exist yet.
func (l *ReportLedger) EnsureTable(ctx context.Context) error {
	job, err := l.client.Query(createTableSQL(l.project, l.dataset, l.table)).Run(ctx)
	if err != nil {
		return fmt.Errorf("EnsureTable: running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("EnsureTable: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("EnsureTable: job error: %w", err)
	}
	return nil
}

func tableRef(project, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, table)
}

func createTableSQL(project, dataset, table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			report_id    STRING NOT NULL,
			account      STRING NOT NULL,
			object_name  STRING NOT NULL,
			link         STRING NOT NULL,
			record_count INT64 NOT NULL,
			size_bytes   INT64 NOT NULL,
			created_at   TIMESTAMP NOT NULL
		)
		PARTITION BY DATE(created_at)
		CLUSTER BY account
	`, tableRef(project, dataset, table))
}

func listByAccountSQL(project, dataset, table string) string {
	return fmt.Sprintf(`
		SELECT
			report_id,
			account,
			object_name,
			link,
			record_count,
			size_bytes,
			created_at
		FROM %s
		WHERE account = @account
		ORDER BY created_at DESC
	`, tableRef(project, dataset, table))
}
