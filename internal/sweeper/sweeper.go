// Package sweeper periodically turns accounts with pending records into
// report generation jobs.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fraud-reports/internal/jobs"
	"github.com/dvloznov/fraud-reports/internal/reports"
)

// Sweeper scans the fast store for accounts with pending records and
// publishes one generate-report job per account.
type Sweeper struct {
	scanner   reports.AccountScanner
	publisher jobs.Publisher
	store     jobs.JobStore
	interval  time.Duration
	log       zerolog.Logger
}

// New creates a Sweeper. store may be nil, in which case accounts that
// already have a job in flight are not skipped.
func New(scanner reports.AccountScanner, publisher jobs.Publisher, store jobs.JobStore, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		scanner:   scanner,
		publisher: publisher,
		store:     store,
		interval:  interval,
		log:       log,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Sweep errors are logged and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")
	for {
		if n, err := s.SweepOnce(ctx); err != nil {
			s.log.Error().Err(err).Int("published", n).Msg("sweep failed")
		} else if n > 0 {
			s.log.Info().Int("published", n).Msg("sweep published jobs")
		}

		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SweepOnce publishes a job for every account with pending records and
// returns how many were published.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	accounts, err := s.scanner.PendingAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("SweepOnce: listing pending accounts: %w", err)
	}

	published := 0
	for _, account := range accounts {
		busy, err := s.inFlight(ctx, account)
		if err != nil {
			return published, fmt.Errorf("SweepOnce: checking jobs for %s: %w", account, err)
		}
		if busy {
			s.log.Debug().Str("account", string(account)).Msg("job already in flight")
			continue
		}

		if err := s.publisher.PublishGenerateReport(ctx, &jobs.GenerateReportJob{Account: account}); err != nil {
			return published, fmt.Errorf("SweepOnce: publishing job for %s: %w", account, err)
		}
		published++
	}
	return published, nil
}

func (s *Sweeper) inFlight(ctx context.Context, account reports.Account) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	for _, status := range []jobs.JobStatus{jobs.JobStatusPending, jobs.JobStatusRunning, jobs.JobStatusRetrying} {
		list, err := s.store.ListJobs(ctx, jobs.JobFilter{Account: account, Status: status, Limit: 1})
		if err != nil {
			return false, err
		}
		if len(list) > 0 {
			return true, nil
		}
	}
	return false, nil
}
