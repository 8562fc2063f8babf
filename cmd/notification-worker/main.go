package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/provider-appointment-booking/internal/appointment"
	"github.com/hackgods/provider-appointment-booking/internal/config"
	"github.com/hackgods/provider-appointment-booking/internal/db"
	"github.com/hackgods/provider-appointment-booking/internal/logging"
	"github.com/hackgods/provider-appointment-booking/internal/party"
	redisclient "github.com/hackgods/provider-appointment-booking/internal/redis"
)

// pendingRetryInterval is how often messages that failed are replayed.
const pendingRetryInterval = 30 * time.Second

type worker struct {
	consumer *redisclient.StreamConsumer
	svc      *appointment.Service
	dir      party.Directory
	logger   *zap.Logger
}

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

	logger.Info("notification-worker starting up",
		zap.String("env", cfg.Env),
		zap.String("stream", cfg.NotifyStream),
		zap.String("group", cfg.NotifyGroup),
		zap.String("consumer", cfg.NotifyConsumer),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.WithApplicationName("notification-worker"))
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()

	// The worker only records notifications, so it runs without the provider
	// lock and the list cache.
	svc := appointment.NewService(appointment.NewPgRepository(pgPool), nil, nil, cfg,
		appointment.WithLogger(logger.Named("appointment")))

	w := &worker{
		consumer: redisclient.NewStreamConsumer(rdb, cfg.NotifyStream, cfg.NotifyGroup, cfg.NotifyConsumer),
		svc:      svc,
		dir:      party.NewPgDirectory(pgPool),
		logger:   logger,
	}

	if err := w.consumer.EnsureGroup(rootCtx); err != nil {
		logger.Fatal("consumer group setup error", zap.Error(err))
	}

	// Finish whatever a previous run left unacked before taking new work.
	if err := w.drainPending(rootCtx); err != nil {
		logger.Fatal("read pending notifications", zap.Error(err))
	}
	lastDrain := time.Now()

	for {
		if time.Since(lastDrain) >= pendingRetryInterval {
			if err := w.drainPending(rootCtx); err != nil && rootCtx.Err() == nil {
				logger.Error("retry pending notifications", zap.Error(err))
			}
			lastDrain = time.Now()
		}

		msgs, err := w.consumer.Next(rootCtx)
		if err != nil {
			if rootCtx.Err() != nil {
				break
			}
			logger.Error("read notifications", zap.Error(err))
			select {
			case <-rootCtx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		w.handleBatch(rootCtx, msgs)

		if rootCtx.Err() != nil {
			break
		}
	}

	logger.Info("shutdown signal received, stopping notification worker")
}

func (w *worker) drainPending(ctx context.Context) error {
	return w.consumer.DrainPending(ctx, func(msg redisclient.StreamMessage) {
		w.handleBatch(ctx, []redisclient.StreamMessage{msg})
	})
}

func (w *worker) handleBatch(ctx context.Context, msgs []redisclient.StreamMessage) {
	for _, msg := range msgs {
		if err := w.handle(ctx, msg); err != nil {
			// left pending, replayed by the next drain
			w.logger.Error("notification not processed",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		if err := w.consumer.Ack(ctx, msg.ID); err != nil {
			w.logger.Warn("ack failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
}

func (w *worker) handle(ctx context.Context, msg redisclient.StreamMessage) error {
	n, err := appointment.DecodeNotification(msg.Payload)
	if err != nil {
		// a malformed message will never decode, so it is dropped
		w.logger.Warn("dropping malformed notification", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}

	inserted, err := w.svc.RecordNotification(ctx, n)
	if err != nil {
		return err
	}
	if !inserted {
		w.logger.Debug("duplicate notification skipped",
			zap.String("message_id", msg.ID),
			zap.String("appointment_id", n.Appointment.ID.String()),
		)
		return nil
	}

	appt := n.Appointment
	w.notify(ctx, "notify provider", appt.ProviderID, n)
	w.notify(ctx, "notify client", appt.ClientID, n)
	return nil
}

// notify stands in for delivery to the party. Lookup failures only cost the
// display name.
func (w *worker) notify(ctx context.Context, msg string, partyID uuid.UUID, n appointment.Notification) {
	name := ""
	p, err := w.dir.GetByID(ctx, partyID)
	switch {
	case err == nil:
		name = p.DisplayName()
	case errors.Is(err, party.ErrNotFound):
	default:
		w.logger.Warn("party lookup failed", zap.String("party_id", partyID.String()), zap.Error(err))
	}

	w.logger.Info(msg,
		zap.String("action", string(n.ActionType)),
		zap.String("party_id", partyID.String()),
		zap.String("party_name", name),
		zap.String("appointment_id", n.Appointment.ID.String()),
		zap.Time("start", n.Appointment.Slot.Start),
		zap.Time("end", n.Appointment.Slot.End),
		zap.Time("occurred_at", n.OccurredAt),
	)
}
