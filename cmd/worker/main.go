package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/fraud-reports/internal/app"
	"github.com/dvloznov/fraud-reports/internal/config"
	"github.com/dvloznov/fraud-reports/internal/jobs"
	"github.com/dvloznov/fraud-reports/internal/jobs/inmemory"
	"github.com/dvloznov/fraud-reports/internal/logger"
	"github.com/dvloznov/fraud-reports/internal/sweeper"
)

// The worker runs the sweep regardless of sweep.enabled; the flag only
// controls the sweep embedded in the API server.
func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional)")
	once := flag.Bool("once", false, "Run a single sweep, wait for its jobs and exit")
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
	log = configured.With().Str("service", "worker").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer services.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(jobStore, app.JobQueueOptions(cfg.Jobs, log))

	if err := jobQueue.Start(ctx, jobs.NewGenerateHandler(services.Generator, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	sw := sweeper.New(services.Records, jobQueue, jobStore, cfg.Sweep.Interval, log)

	if *once {
		n, err := sw.SweepOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Sweep failed")
		}
		waitForJobs(ctx, jobStore, n)
	} else {
		go func() {
			_ = sw.Run(ctx)
		}()

		log.Info().Dur("interval", cfg.Sweep.Interval).Msg("Worker service started")

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info().Msg("Shutting down worker service...")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}

// waitForJobs polls the store until published jobs have all finished.
func waitForJobs(ctx context.Context, store jobs.JobStore, published int) {
	if published == 0 {
		return
	}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		finished := 0
		for _, status := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed} {
			list, err := store.ListJobs(ctx, jobs.JobFilter{Status: status})
			if err != nil {
				return
			}
			finished += len(list)
		}
		if finished >= published {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
