package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskmanager/internal/cache"
	"taskmanager/internal/config"
	"taskmanager/internal/database"
	"taskmanager/internal/handlers"
	"taskmanager/internal/jobs"
	"taskmanager/internal/log"
	"taskmanager/internal/notify"
	"taskmanager/internal/repository"
	"taskmanager/internal/revocation"
	"taskmanager/internal/security"
	"taskmanager/internal/server"
	"taskmanager/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	users := repository.NewUserRepository(dbPool)
	tasks := repository.NewTaskRepository(dbPool)
	tokens := security.NewTokenService(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	revoked := revocation.NewRedisStore(redisClient, cfg.Security.RevocationTTL, cfg.Security.StoreTimeout, logger)
	publisher := notify.NewPublisher(redisClient, cfg.Notify.Stream)

	authService := service.NewAuthService(users, tokens, revoked, cfg.Security.StoreTimeout, logger)
	taskService := service.NewTaskService(tasks, users, publisher, cfg.Security.StoreTimeout, logger)

	handlerSet := handlers.NewHandlerSet(handlers.Dependencies{
		Log:         logger,
		Environment: cfg.Environment,
		Auth:        authService,
		Tasks:       taskService,
		Tokens:      tokens,
		Revoked:     revoked,
		Database:    dbPool,
		Cache: handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	})

	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build http server")
	}

	scheduler := jobs.NewScheduler(taskService, cfg.Jobs.ReminderSchedule, cfg.Jobs.ReminderWindow, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(5 * time.Second)

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
