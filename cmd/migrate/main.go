package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/provider-appointment-booking/internal/config"
	"github.com/hackgods/provider-appointment-booking/internal/db"
	"github.com/hackgods/provider-appointment-booking/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.WithApplicationName("migrate"))
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	before, err := db.Version(ctx, pool)
	if err != nil {
		logger.Fatal("read migration version", zap.Error(err))
	}

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	after, err := db.Version(ctx, pool)
	if err != nil {
		logger.Fatal("read migration version", zap.Error(err))
	}

	logger.Info("migrations applied", zap.Int64("from", before), zap.Int64("to", after))
}
