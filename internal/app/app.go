// Package app assembles the report services from configuration. Every
// command builds its dependencies through New so the API, the worker and
// the CLI share one wiring.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fraud-reports/internal/artifactstore"
	"github.com/dvloznov/fraud-reports/internal/artifactstore/gcsstore"
	artifactsmem "github.com/dvloznov/fraud-reports/internal/artifactstore/inmemory"
	"github.com/dvloznov/fraud-reports/internal/artifactstore/miniostore"
	"github.com/dvloznov/fraud-reports/internal/config"
	infraBQ "github.com/dvloznov/fraud-reports/internal/infra/bigquery"
	jobsmem "github.com/dvloznov/fraud-reports/internal/jobs/inmemory"
	"github.com/dvloznov/fraud-reports/internal/metrics"
	"github.com/dvloznov/fraud-reports/internal/recordstore/redisstore"
	"github.com/dvloznov/fraud-reports/internal/reports"
)

// App holds the long lived clients and the core services built on them.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Records     *redisstore.Store
	Artifacts   reports.ArtifactStore
	Provisioner *reports.Provisioner
	Generator   *reports.Generator
	Catalog     *reports.Catalog
	Metrics     *metrics.Metrics

	// Ledger is nil when bigquery.project is not configured.
	Ledger *infraBQ.ReportLedger

	closers []func() error
}

// New connects to Redis, the configured artifact backend and, when enabled,
// the BigQuery ledger. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *App, err error) {
	a := &App{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	client, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.Records = redisstore.NewStore(client, redisstore.Options{
		PendingPrefix: cfg.Redis.PendingPrefix,
		LinksPrefix:   cfg.Redis.LinksPrefix,
		StagingPrefix: cfg.Redis.StagingPrefix,
		Timeout:       cfg.Redis.Timeout,
		Lease:         cfg.Redis.StagingLease,
	})

	artifacts, closeArtifacts, err := NewArtifactStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	a.closers = append(a.closers, closeArtifacts)
	a.Artifacts = artifactstore.WithTimeout(artifacts, cfg.Artifacts.Timeout)

	opts := []reports.GeneratorOption{reports.WithRecorder(a.Metrics)}
	if cfg.LedgerEnabled() {
		ledger, err := infraBQ.NewReportLedger(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		a.closers = append(a.closers, ledger.Close)
		a.Ledger = ledger
		opts = append(opts, reports.WithLedger(ledger))
	}

	a.wire(opts...)
	return a, nil
}

// wire builds the core services on the already opened stores.
func (a *App) wire(opts ...reports.GeneratorOption) {
	provisionLog := a.Log.With().Str("bucket", a.Config.Artifacts.Bucket).Logger()
	a.Provisioner = reports.NewProvisioner(a.Artifacts, reports.DefaultAccessPolicy(), provisionLog)
	a.Generator = reports.NewGenerator(
		a.Records,
		a.Artifacts,
		a.Provisioner,
		reports.NewLinkBuilder(a.Config.HTTP.PublicBaseURL),
		a.Log,
		opts...,
	)
	a.Catalog = reports.NewCatalog(a.Records, a.Artifacts)
}

// JobQueueOptions maps the jobs section onto the in-memory queue. A
// max_retries of zero runs each job once instead of selecting the queue
// default.
func JobQueueOptions(cfg config.JobsConfig, log zerolog.Logger) jobsmem.QueueOptions {
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = jobsmem.NoRetries
	}
	return jobsmem.QueueOptions{
		BufferSize: cfg.Buffer,
		Workers:    cfg.Workers,
		MaxRetries: retries,
		Log:        log,
	}
}

// NewArtifactStore opens the backend selected by artifacts.backend. The
// returned close func is never nil.
func NewArtifactStore(ctx context.Context, cfg *config.Config) (reports.ArtifactStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Artifacts.Backend {
	case config.BackendMinio:
		store, err := miniostore.NewStore(miniostore.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Secure:    cfg.Minio.Secure,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Artifacts.Bucket,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("NewArtifactStore: minio: %w", err)
		}
		return store, noop, nil

	case config.BackendGCS:
		store, err := gcsstore.NewStore(ctx, gcsstore.Config{
			Project:  cfg.GCS.Project,
			Bucket:   cfg.Artifacts.Bucket,
			Location: cfg.GCS.Location,
			Endpoint: cfg.GCS.Endpoint,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("NewArtifactStore: gcs: %w", err)
		}
		return store, store.Close, nil

	case config.BackendMemory:
		return artifactsmem.NewStore(), noop, nil

	default:
		return nil, noop, fmt.Errorf("NewArtifactStore: %w: got %q", config.ErrUnknownBackend, cfg.Artifacts.Backend)
	}
}

// Close releases every client opened by New, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
