package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/fraud-reports/internal/api"
	"github.com/dvloznov/fraud-reports/internal/api/handlers"
	"github.com/dvloznov/fraud-reports/internal/app"
	"github.com/dvloznov/fraud-reports/internal/config"
	"github.com/dvloznov/fraud-reports/internal/jobs"
	"github.com/dvloznov/fraud-reports/internal/jobs/inmemory"
	"github.com/dvloznov/fraud-reports/internal/logger"
	"github.com/dvloznov/fraud-reports/internal/sweeper"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional)")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	configured, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logger")
	}
	log = configured.With().Str("service", "api").Logger()

	ctx := context.Background()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer services.Close()

	// Provisioning on startup is best effort; Generate provisions again on demand.
	if err := services.Provisioner.EnsureProvisioned(ctx); err != nil {
		log.Warn().Err(err).Str("bucket", cfg.Artifacts.Bucket).Msg("Bucket provisioning failed, will retry on first report")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(jobStore, app.JobQueueOptions(cfg.Jobs, log))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, jobs.NewGenerateHandler(services.Generator, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	if cfg.Sweep.Enabled {
		sw := sweeper.New(services.Records, jobQueue, jobStore, cfg.Sweep.Interval, log)
		go func() {
			_ = sw.Run(workerCtx)
		}()
	}

	handler := api.Router{
		Reports:  handlers.NewReportsHandler(services.Generator, services.Catalog, log),
		Jobs:     handlers.NewJobsHandler(jobStore, log),
		Metrics:  services.Metrics.Handler(),
		Observer: services.Metrics,
		Log:      log,
	}.Handler()

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.HTTP.Port).
			Str("backend", cfg.Artifacts.Backend).
			Str("bucket", cfg.Artifacts.Bucket).
			Bool("ledger", cfg.LedgerEnabled()).
			Bool("sweep", cfg.Sweep.Enabled).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
