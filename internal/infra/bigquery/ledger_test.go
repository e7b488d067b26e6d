package bigquery

import (
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/fraud-reports/internal/reports"
)

func TestNewReportRow(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("BRT", -3*3600))
	report := reports.GeneratedReport{
		ReportID:    "a1b2c3d4",
		Account:     "1234.12345678",
		ObjectName:  "1234.12345678_20240301153000_a1b2c3d4",
		Link:        "http://localhost:8080/api/reports/download/1234.12345678_20240301153000_a1b2c3d4",
		RecordCount: 3,
		SizeBytes:   42,
		CreatedAt:   created,
	}

	row := NewReportRow(report)

	if row.Account != "1234.12345678" {
		t.Errorf("Account = %q", row.Account)
	}
	if row.RecordCount != 3 || row.SizeBytes != 42 {
		t.Errorf("counts = %d/%d, want 3/42", row.RecordCount, row.SizeBytes)
	}
	if row.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt location = %v, want UTC", row.CreatedAt.Location())
	}
	if !row.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", row.CreatedAt, created)
	}

	back := row.Report()
	if back.ObjectName != report.ObjectName || back.Link != report.Link || back.Account != report.Account {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestCreateTableSQL(t *testing.T) {
	sql := createTableSQL("proj", "fraud", "fraud_reports")

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS `proj.fraud.fraud_reports`",
		"report_id    STRING NOT NULL",
		"created_at   TIMESTAMP NOT NULL",
		"CLUSTER BY account",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("create SQL missing %q:\n%s", want, sql)
		}
	}
}

func TestListByAccountSQL(t *testing.T) {
	sql := listByAccountSQL("proj", "fraud", "fraud_reports")

	if !strings.Contains(sql, "FROM `proj.fraud.fraud_reports`") {
		t.Errorf("list SQL has wrong table:\n%s", sql)
	}
	if !strings.Contains(sql, "WHERE account = @account") {
		t.Errorf("list SQL must filter by the account parameter:\n%s", sql)
	}
}
