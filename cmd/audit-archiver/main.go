package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dispatchly/dispatch-api/internal/config"
	"github.com/dispatchly/dispatch-api/internal/domain/audit"
	"github.com/dispatchly/dispatch-api/internal/domain/deposit"
	"github.com/dispatchly/dispatch-api/internal/pkg/database"
	"github.com/dispatchly/dispatch-api/internal/pkg/logger"
	"github.com/dispatchly/dispatch-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	log.Info().Msg("Starting audit-archiver")

	if !cfg.AuditEnabled() {
		log.Fatal().Msg("AUDIT_S3_BUCKET is required")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{MaxOpen: 4, MaxIdle: 2})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bucket, err := storage.NewS3Storage(ctx, storage.S3Config{
		Endpoint:  cfg.AuditS3Endpoint,
		Region:    cfg.AuditS3Region,
		Bucket:    cfg.AuditS3Bucket,
		AccessKey: cfg.AuditS3AccessKey,
		SecretKey: cfg.AuditS3SecretKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 client")
	}

	// Optional Redis wake-up; polling still runs without it.
	wake := make(chan struct{}, 1)
	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, polling only")
	} else if rdb != nil {
		defer database.CloseRedis(rdb)
		go audit.SubscribeWakeups(ctx, rdb, wake)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	worker := audit.NewWorker(
		audit.NewPostgresQueue(db, cfg.AuditMaxAttempts),
		deposit.NewPostgresStore(db),
		audit.NewArchiver(bucket),
		cfg.AuditPollInterval,
	)

	// catch up on anything committed while the worker was down
	if n, err := worker.Drain(ctx); err != nil {
		log.Error().Err(err).Msg("Initial drain failed")
	} else {
		log.Info().Int("archived", n).Msg("Initial drain done")
	}

	worker.Run(ctx, wake)
}
