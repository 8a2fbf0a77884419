package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-works/meridian/internal/app"
	"github.com/meridian-works/meridian/internal/audit"
	"github.com/meridian-works/meridian/internal/authz"
	"github.com/meridian-works/meridian/internal/observability"
	"github.com/meridian-works/meridian/internal/platform/cache"
	"github.com/meridian-works/meridian/internal/platform/db"
	"github.com/meridian-works/meridian/internal/scope"
	"github.com/meridian-works/meridian/internal/security"
	"github.com/meridian-works/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

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

	metrics := observability.NewMetrics()
	emitter := security.NewEmitter(logger, metrics.Registerer())

	scopeRepo := scope.NewRepository(pool)
	resolver := scope.NewResolver(scopeRepo)

	auditLogger := audit.NewLogger(pool)
	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService)

	store := authz.NewStore(pool)
	cache := authz.NewDecisionCache(redisClient, cfg.DecisionCacheTTL, logger)
	evaluator := authz.NewEvaluator(store, resolver, cache, emitter, logger)
	manager := authz.NewManager(store, resolver, auditLogger, cache, logger)
	authzMiddleware := authz.Middleware{Evaluator: evaluator, Logger: logger}
	authzHandler := authz.NewHandler(logger, evaluator, manager, store, authzMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthzHandler:    authzHandler,
		AuthzMiddleware: authzMiddleware,
		AuditHandler:    auditHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
