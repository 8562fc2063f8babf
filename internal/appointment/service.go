package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/hackgods/provider-appointment-booking/internal/config"
	"github.com/hackgods/provider-appointment-booking/internal/party"
	redisclient "github.com/hackgods/provider-appointment-booking/internal/redis"
)

// MaxListCount bounds ListUpcomingForParty.
const MaxListCount = 100

var tracer = otel.Tracer("github.com/hackgods/provider-appointment-booking/internal/appointment")

// Cache holds encoded upcoming lists. A nil Cache disables caching.
//
// Writes are guarded by a per-key generation: read it with Generation before
// loading from the repository, then SetIfGeneration stores the list only if no
// Invalidate ran in between.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Generation(ctx context.Context, key string) (int64, error)
	SetIfGeneration(ctx context.Context, key string, gen int64, value []byte, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	cache    Cache
	cacheTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(repo Repository, locker redisclient.Locker, cache Cache, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		locker:   locker,
		cache:    cache,
		cacheTTL: cfg.ListCacheTTL,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAppointment books slot on the provider's calendar for the client.
// The provider lock and the provider transaction make the overlap check and
// the insert one atomic step.
func (s *Service) CreateAppointment(ctx context.Context, clientID, providerID uuid.UUID, slot Slot) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider.id", providerID.String()),
		attribute.String("client.id", clientID.String()),
	)

	if providerID == uuid.Nil || clientID == uuid.Nil {
		return nil, validationError(ErrMissingParty, ErrMissingParty.Error())
	}

	slot = slot.UTC()
	if err := slot.Validate(s.now()); err != nil {
		return nil, err
	}

	var created *Appointment

	err := s.locker.WithProviderLock(ctx, providerID, func(lockCtx context.Context) error {
		return s.repo.InProviderTx(lockCtx, providerID, func(txCtx context.Context, tx CalendarTx) error {
			existing, err := tx.ListOverlapping(txCtx, providerID, slot)
			if err != nil {
				return fmt.Errorf("list provider appointments: %w", err)
			}
			for _, a := range existing {
				if a.Slot.Overlaps(slot) {
					return ErrSlotUnavailable
				}
			}

			appt, err := tx.Insert(txCtx, Appointment{
				ID:         uuid.New(),
				Slot:       slot,
				ProviderID: providerID,
				ClientID:   clientID,
			})
			if err != nil {
				return fmt.Errorf("insert appointment: %w", err)
			}

			created = appt
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			err = ErrProviderBusy
		}
		if !errors.Is(err, ErrSlotUnavailable) && !errors.Is(err, ErrProviderBusy) {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	s.invalidate(ctx, *created)

	s.logger.Info("appointment created",
		zap.String("appointment_id", created.ID.String()),
		zap.String("provider_id", providerID.String()),
		zap.String("client_id", clientID.String()),
		zap.Time("start", slot.Start),
		zap.Time("end", slot.End),
		zap.Duration("duration", slot.Duration()),
	)
	return created, nil
}

// DeleteAppointment removes the appointment and returns the removed record.
// Authorization is the caller's job.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id.String()))

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("no appointment to delete: %w", ErrNotFound)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("delete appointment: %w", err)
	}

	s.invalidate(ctx, *removed)

	s.logger.Info("appointment deleted",
		zap.String("appointment_id", removed.ID.String()),
		zap.String("provider_id", removed.ProviderID.String()),
		zap.String("client_id", removed.ClientID.String()),
	)
	return removed, nil
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListUpcomingForParty returns at most count appointments starting at or
// after now where the party acts in role, ordered by start.
func (s *Service) ListUpcomingForParty(ctx context.Context, partyID uuid.UUID, role party.Role, count int) ([]Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.ListUpcoming")
	defer span.End()
	span.SetAttributes(
		attribute.String("party.id", partyID.String()),
		attribute.String("party.role", string(role)),
		attribute.Int("count", count),
	)

	if count < 1 || count > MaxListCount {
		return nil, validationError(ErrInvalidCount, fmt.Sprintf("count must be between 1 and %d", MaxListCount))
	}
	if role != party.RoleProvider && role != party.RoleClient {
		return nil, fmt.Errorf("%w: cannot list appointments as %q", ErrRoleMismatch, role)
	}

	now := s.now()
	list, cached, err := s.upcoming(ctx, partyID, role, now, true)
	if err != nil {
		return nil, err
	}

	out := firstUpcoming(list, now, count)

	// A full cached list that lost entries to the clock may hide appointments
	// beyond its tail.
	if cached && len(out) < count && len(list) >= MaxListCount {
		list, _, err = s.upcoming(ctx, partyID, role, now, false)
		if err != nil {
			return nil, err
		}
		out = firstUpcoming(list, now, count)
	}
	return out, nil
}

func firstUpcoming(list []Appointment, now time.Time, count int) []Appointment {
	out := make([]Appointment, 0, count)
	for _, a := range list {
		if a.Slot.Start.Before(now) {
			continue
		}
		out = append(out, a)
		if len(out) == count {
			break
		}
	}
	return out
}

// upcoming returns the first MaxListCount appointments from now on and
// whether they came from the cache. With useCached false the cache is only
// refreshed. Cached lists may contain entries that started since they were
// stored; the caller filters them.
func (s *Service) upcoming(ctx context.Context, partyID uuid.UUID, role party.Role, now time.Time, useCached bool) ([]Appointment, bool, error) {
	key := upcomingKey(role, partyID)

	var (
		gen      int64
		canStore bool
	)
	if s.cache != nil {
		var err error
		gen, err = s.cache.Generation(ctx, key)
		if err != nil {
			s.logger.Warn("upcoming cache generation read failed", zap.String("key", key), zap.Error(err))
		}
		canStore = err == nil

		if useCached {
			raw, ok, err := s.cache.Get(ctx, key)
			if err != nil {
				s.logger.Warn("upcoming cache read failed", zap.String("key", key), zap.Error(err))
			}
			if ok {
				var cached []Appointment
				if err := json.Unmarshal(raw, &cached); err == nil {
					return cached, true, nil
				}
				s.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
			}
		}
	}

	var (
		list []Appointment
		err  error
	)
	if role == party.RoleProvider {
		list, err = s.repo.ListUpcomingByProvider(ctx, partyID, now, MaxListCount)
	} else {
		list, err = s.repo.ListUpcomingByClient(ctx, partyID, now, MaxListCount)
	}
	if err != nil {
		return nil, false, fmt.Errorf("list upcoming appointments: %w", err)
	}

	if canStore {
		raw, err := json.Marshal(list)
		if err == nil {
			_, err = s.cache.SetIfGeneration(ctx, key, gen, raw, s.cacheTTL)
		}
		if err != nil {
			s.logger.Warn("upcoming cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return list, false, nil
}

func upcomingKey(role party.Role, partyID uuid.UUID) string {
	return fmt.Sprintf("appointments:upcoming:%s:%s", role, partyID)
}

func (s *Service) invalidate(ctx context.Context, appt Appointment) {
	if s.cache == nil {
		return
	}
	keys := []string{
		upcomingKey(party.RoleProvider, appt.ProviderID),
		upcomingKey(party.RoleClient, appt.ClientID),
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Error("upcoming cache invalidation failed",
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
	}
}
