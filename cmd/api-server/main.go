package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/provider-appointment-booking/internal/api"
	"github.com/hackgods/provider-appointment-booking/internal/appointment"
	"github.com/hackgods/provider-appointment-booking/internal/config"
	"github.com/hackgods/provider-appointment-booking/internal/db"
	"github.com/hackgods/provider-appointment-booking/internal/logging"
	"github.com/hackgods/provider-appointment-booking/internal/party"
	redisclient "github.com/hackgods/provider-appointment-booking/internal/redis"
	"github.com/hackgods/provider-appointment-booking/internal/slot"
	"github.com/hackgods/provider-appointment-booking/internal/telemetry"
)

var version = "dev"

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

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, "api-server", cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal("tracing setup error", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown error", zap.Error(err))
		}
	}()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.WithApplicationName("api-server"))
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	directory := party.NewPgDirectory(pgPool)

	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		redisclient.NewRedisProviderLocker(rdb, cfg.LockTTL, cfg.LockWait),
		redisclient.NewCache(rdb),
		cfg,
		appointment.WithLogger(logger.Named("appointment")),
	)

	slots := slot.NewService(slot.NewPgStore(pgPool), slot.Env{}, logger.Named("slot"))

	notifier := appointment.NewNotifier(
		redisclient.NewStreamPublisher(rdb, cfg.NotifyStream),
		logger.Named("notifier"),
	)

	router := api.NewRouter(api.RouterConfig{
		Appointments: appointments,
		Slots:        slots,
		Directory:    directory,
		Notifier:     notifier,
		Postgres:     pgPool,
		Redis:        api.RedisPinger(rdb),
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}

	logger.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
