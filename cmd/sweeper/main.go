/**
 * @description
 * This is the main entry point for the expiry sweeper. By default it runs one
 * sweep over lapsed premium profiles and exits: 0 on success (including
 * nothing to do), 1 when required configuration is missing or the sweep hits
 * an unrecoverable error. When SWEEP_SCHEDULE is set it instead stays up as a
 * long-running process executing the sweep on that cron schedule.
 */
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradelearn/billing-service/internal/app"
	"github.com/tradelearn/billing-service/internal/config"
	"github.com/tradelearn/billing-service/internal/store"
	"github.com/tradelearn/billing-service/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load application configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Error("database url must be configured", "env", "DATABASE_URL")
		os.Exit(1)
	}

	ctx := context.Background()

	// Establish database connection with connection pool configuration
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = 30 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// Billing events are best effort; the sweep must run without the broker.
	var producer rabbitmq.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		producer = &rabbitmq.EventProducerFallback{}
	} else if eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback", "error", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
	}

	// Initialize dependencies
	repository := store.NewPostgresRepository(dbpool)
	jobs := app.NewJobs(repository, producer, logger)

	// One-shot mode: run a single sweep and exit with a meaningful code.
	if strings.TrimSpace(cfg.SweepSchedule) == "" {
		if err := jobs.ProcessExpiredMemberships(ctx); err != nil {
			logger.Error("membership expiry sweep failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Cron mode: keep running and sweep on the configured schedule.
	scheduler := app.NewScheduler(jobs, logger, cfg.SweepSchedule)
	scheduler.Start()
	logger.Info("sweeper started", "schedule", cfg.SweepSchedule)

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping sweeper")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done() // Wait for in-flight sweep to finish
	logger.Info("sweeper stopped gracefully")
}
