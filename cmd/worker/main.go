package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mediaforge/internal/adapter/repo"
	"mediaforge/internal/billing"
	"mediaforge/internal/infra"
	"mediaforge/internal/orchestrator"
	"mediaforge/internal/provider"
	"mediaforge/internal/timeline"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := infra.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: migrations failed")
	}

	jobs := repo.NewJobStore(pool)
	ledger := billing.NewReconciler(pool, logger, cfg.StartingBalance)
	resolver := timeline.NewResolver(jobs, ledger, logger)

	httpClient := &http.Client{Timeout: 60 * time.Second}
	registry := provider.NewRegistry(cfg.Providers, httpClient, logger)

	scheduler := orchestrator.New(orchestrator.Config{
		MaxInFlight:   cfg.MaxInFlight,
		ClaimInterval: cfg.ClaimInterval,
		ClaimBatch:    cfg.ClaimBatch,
		Lease:         cfg.JobLease,
		Policies:      cfg.PollPolicies,
	}, jobs, ledger, registry, resolver, logger)

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
