package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/fraud-reports/internal/app"
	"github.com/dvloznov/fraud-reports/internal/config"
	"github.com/dvloznov/fraud-reports/internal/logger"
)

const defaultCommandTimeout = 2 * time.Minute

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	timeout    time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "reports",
		Short: "Fraud report operator CLI",
		Long: `Operate the fraud report service directly against its stores.

Commands:
  generate     Drain an account's flagged transactions into a new report
  list         List the report links of an account
  download     Download a report artifact
  provision    Create the report bucket and apply its access policy
  ledger-init  Create the BigQuery report ledger table`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultCommandTimeout, "overall command timeout")

	root.AddCommand(
		newGenerateCommand(opts),
		newListCommand(opts),
		newDownloadCommand(opts),
		newProvisionCommand(opts),
		newLedgerInitCommand(opts),
	)
	return root
}

// load reads the configuration and builds the command logger.
func (o *options) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log.With().Str("service", "cli").Logger(), nil
}

// services loads configuration and connects every store. The caller must
// close the returned App.
func (o *options) services(ctx context.Context) (*app.App, error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	return a, nil
}

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}
