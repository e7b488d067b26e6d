package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	infraBQ "github.com/dvloznov/fraud-reports/internal/infra/bigquery"
)

var errLedgerDisabled = errors.New("report ledger is disabled: set bigquery.project")

// newLedgerInitCommand creates the ledger table. It only needs BigQuery,
// so it does not connect to Redis or the artifact store.
func newLedgerInitCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger-init",
		Short: "Create the BigQuery report ledger table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if !cfg.LedgerEnabled() {
				return errLedgerDisabled
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			ledger, err := infraBQ.NewReportLedger(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
			if err != nil {
				return err
			}
			defer ledger.Close()

			if err := ledger.EnsureTable(ctx); err != nil {
				return err
			}

			log.Info().
				Str("project", cfg.BigQuery.Project).
				Str("dataset", cfg.BigQuery.Dataset).
				Str("table", cfg.BigQuery.Table).
				Msg("Ledger table ready")
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger table %s.%s.%s is ready.\n", cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
			return nil
		},
	}
}
