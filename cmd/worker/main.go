package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meridian-works/meridian/internal/app"
	"github.com/meridian-works/meridian/internal/audit"
	"github.com/meridian-works/meridian/internal/authz"
	jobmetrics "github.com/meridian-works/meridian/internal/jobs"
	"github.com/meridian-works/meridian/internal/platform/cache"
	"github.com/meridian-works/meridian/internal/platform/db"
	"github.com/meridian-works/meridian/internal/scope"
	"github.com/meridian-works/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	scopeRepo := scope.NewRepository(pool)
	resolver := scope.NewResolver(scopeRepo)
	store := authz.NewStore(pool)
	decisionCache := authz.NewDecisionCache(redisClient, cfg.DecisionCacheTTL, logger)
	auditLogger := audit.NewLogger(pool)
	manager := authz.NewManager(store, resolver, auditLogger, decisionCache, logger)

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	expiryJob := jobs.NewAssignmentExpiryJob(manager, logger, metrics)

	sweepTask, err := jobs.NewAssignmentExpiryTask("scheduled")
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAssignmentExpiry, Handler: expiryJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ExpirySweepSpec, Task: sweepTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting",
		slog.String("redis", cfg.RedisAddr),
		slog.String("sweep_spec", cfg.ExpirySweepSpec),
	)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
