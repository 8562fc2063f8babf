package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/provider-appointment-booking/internal/appointment"
	"github.com/hackgods/provider-appointment-booking/internal/config"
	"github.com/hackgods/provider-appointment-booking/internal/db"
	"github.com/hackgods/provider-appointment-booking/internal/logging"
	"github.com/hackgods/provider-appointment-booking/internal/party"
)

const (
	providerCount    = 50
	clientCount      = 2000
	adminCount       = 2
	apptsPerProvider = 20
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
	logger.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.WithApplicationName("seed"))
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	dir := party.NewPgDirectory(pool)
	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	providers, err := seedParties(context.Background(), logger, dir, faker, party.RoleProvider, providerCount)
	if err != nil {
		logger.Fatal("seed providers", zap.Error(err))
	}
	clients, err := seedParties(context.Background(), logger, dir, faker, party.RoleClient, clientCount)
	if err != nil {
		logger.Fatal("seed clients", zap.Error(err))
	}
	if _, err := seedParties(context.Background(), logger, dir, faker, party.RoleAdmin, adminCount); err != nil {
		logger.Fatal("seed admins", zap.Error(err))
	}

	repo := appointment.NewPgRepository(pool)
	if err := seedAppointments(context.Background(), logger, repo, faker, providers, clients); err != nil {
		logger.Fatal("seed appointments", zap.Error(err))
	}

	logger.Info("seed complete")
}

func seedParties(ctx context.Context, logger *zap.Logger, dir *party.PgDirectory, faker *gofakeit.Faker, role party.Role, count int) ([]uuid.UUID, error) {
	logger.Info("seeding parties", zap.String("role", string(role)), zap.Int("count", count))

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		first, last := faker.FirstName(), faker.LastName()
		nationalID := faker.Numerify("###########")
		r := role

		p, err := dir.Create(ctx, party.Party{
			Login:      fmt.Sprintf("%s.%s.%d", strings.ToLower(first), strings.ToLower(last), faker.Number(1000, 999999)),
			Name:       first,
			Surname:    last,
			NationalID: &nationalID,
			Role:       &r,
		})
		if errors.Is(err, party.ErrLoginAlreadyExists) {
			// login or national id collided, draw again
			i--
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)

		if (i+1)%500 == 0 {
			logger.Info("parties seeded", zap.String("role", string(role)), zap.Int("done", i+1), zap.Int("total", count))
		}
	}
	return ids, nil
}

// seedAppointments fills each provider's next working days with
// non-overlapping appointments in 30 minute steps.
func seedAppointments(ctx context.Context, logger *zap.Logger, repo *appointment.PgRepository, faker *gofakeit.Faker, providers, clients []uuid.UUID) error {
	logger.Info("seeding appointments", zap.Int("providers", len(providers)), zap.Int("per_provider", apptsPerProvider))

	day := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	durations := []time.Duration{15 * time.Minute, 30 * time.Minute, 45 * time.Minute, time.Hour}

	total := 0
	for _, providerID := range providers {
		err := repo.InProviderTx(ctx, providerID, func(ctx context.Context, tx appointment.CalendarTx) error {
			cursor := day.Add(8 * time.Hour)
			for i := 0; i < apptsPerProvider; i++ {
				cursor = cursor.Add(time.Duration(faker.Number(0, 4)) * 30 * time.Minute)
				d := durations[faker.Number(0, len(durations)-1)]
				slot := appointment.Slot{Start: cursor, End: cursor.Add(d)}

				_, err := tx.Insert(ctx, appointment.Appointment{
					ID:         uuid.New(),
					Slot:       slot,
					ProviderID: providerID,
					ClientID:   clients[faker.Number(0, len(clients)-1)],
				})
				if err != nil {
					return err
				}
				cursor = slot.End
				total++
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("provider %s: %w", providerID, err)
		}
	}

	logger.Info("appointments seeded", zap.Int("total", total))
	return nil
}
