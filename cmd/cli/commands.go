package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dvloznov/fraud-reports/internal/reports"
)

func newGenerateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <account>",
		Short: "Generate a report from the account's pending records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := reports.ValidateAccount(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			a, err := opts.services(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			outcome, err := a.Generator.Generate(ctx, account)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outcome.Status == reports.GenerateNoPendingRecords {
				fmt.Fprintf(out, "No pending records for %s.\n", account)
				return nil
			}
			fmt.Fprintf(out, "Report %s written with %d records.\n", outcome.Report.ObjectName, outcome.Report.RecordCount)
			fmt.Fprintln(out, outcome.Link())
			return nil
		},
	}
}

func newListCommand(opts *options) *cobra.Command {
	var fromLedger bool

	cmd := &cobra.Command{
		Use:   "list <account>",
		Short: "List the report links of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := reports.ValidateAccount(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			a, err := opts.services(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()

			if fromLedger {
				if a.Ledger == nil {
					return errLedgerDisabled
				}
				entries, err := a.Ledger.ListByAccount(ctx, account)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(out, "%s\t%d records\t%d bytes\t%s\n",
						e.CreatedAt.Format("2006-01-02 15:04:05"), e.RecordCount, e.SizeBytes, e.Link)
				}
				return nil
			}

			listed, err := a.Catalog.List(ctx, account)
			if err != nil {
				return err
			}
			if listed.NoReports() {
				fmt.Fprintf(out, "No reports for %s.\n", account)
				return nil
			}
			for _, link := range listed.Links {
				fmt.Fprintln(out, link)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromLedger, "ledger", false, "read report history from the BigQuery ledger")
	return cmd
}

func newDownloadCommand(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <object-name>",
		Short: "Download a report artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := reports.CheckObjectName(name); err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			a, err := opts.services(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rc, err := a.Catalog.Download(ctx, name)
			if err != nil {
				return err
			}
			defer rc.Close()

			if output == "-" {
				_, err = io.Copy(cmd.OutOrStdout(), rc)
				return err
			}
			if output == "" {
				output = filepath.Join(".", name+".json")
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			written, err := io.Copy(f, rc)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", written, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `output file, "-" for stdout (default <object-name>.json)`)
	return cmd
}

func newProvisionCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create the report bucket and apply its access policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			a, err := opts.services(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Provisioner.Provision(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bucket %s is ready.\n", a.Config.Artifacts.Bucket)
			return nil
		},
	}
}
