package jobs

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fraud-reports/internal/reports"
)

// ReportGenerator is satisfied by *reports.Generator.
type ReportGenerator interface {
	Generate(ctx context.Context, account reports.Account) (reports.GenerateOutcome, error)
}

// NewGenerateHandler returns a JobHandler that runs the generator for the
// job's account and records the outcome on the job. A failed run has already
// put the account's records back, so retrying it is safe.
func NewGenerateHandler(gen ReportGenerator, log zerolog.Logger) JobHandler {
	return func(ctx context.Context, job *GenerateReportJob) error {
		l := log.With().
			Str("job_id", job.JobID).
			Str("account", string(job.Account)).
			Int("attempt", job.RetryCount+1).
			Logger()

		outcome, err := gen.Generate(ctx, job.Account)
		if err != nil {
			l.Error().Err(err).Msg("report generation failed")
			return err
		}

		job.Outcome = outcome.Status
		job.Link = outcome.Link()
		job.ObjectName = outcome.Report.ObjectName

		if outcome.Status == reports.GenerateNoPendingRecords {
			l.Debug().Msg("no pending records")
			return nil
		}
		l.Info().
			Str("object", outcome.Report.ObjectName).
			Int("records", outcome.Report.RecordCount).
			Msg("report generated")
		return nil
	}
}
