package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/provider-appointment-booking/internal/appointment"
	"github.com/hackgods/provider-appointment-booking/internal/party"
	"github.com/hackgods/provider-appointment-booking/internal/slot"
)

type AppointmentService interface {
	CreateAppointment(ctx context.Context, clientID, providerID uuid.UUID, slot appointment.Slot) (*appointment.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListUpcomingForParty(ctx context.Context, partyID uuid.UUID, role party.Role, count int) ([]appointment.Appointment, error)
}

type SlotService interface {
	Open(ctx context.Context, start, end time.Time) (slot.State, []slot.Event, error)
	Get(ctx context.Context, id uuid.UUID) (slot.State, []slot.Event, error)
	Handle(ctx context.Context, id uuid.UUID, cmd slot.Command) (slot.State, []slot.Event, error)
}

// Notifier emits booking notifications. Emit must not fail the request.
type Notifier interface {
	Emit(ctx context.Context, action appointment.ActionType, appt appointment.Appointment)
}

type noopNotifier struct{}

func (noopNotifier) Emit(context.Context, appointment.ActionType, appointment.Appointment) {}

type RouterConfig struct {
	Appointments AppointmentService
	Slots        SlotService
	Directory    party.Directory
	Notifier     Notifier
	Postgres     Pinger
	Redis        Pinger
	Logger       *zap.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	appts := &appointmentHandlers{
		svc:      cfg.Appointments,
		dir:      cfg.Directory,
		notifier: notifier,
		logger:   logger,
	}
	slots := &slotHandlers{svc: cfg.Slots, logger: logger}

	r.Group(func(r chi.Router) {
		r.Use(IdentityMiddleware(cfg.Directory))

		// Appointment endpoints
		r.Post("/appointments", appts.create)
		r.Get("/appointments/me", appts.listMine)
		r.Get("/appointments/{id}", appts.get)
		r.Delete("/appointments/{id}", appts.delete)
		r.Get("/providers/{login}/appointments", appts.listForProvider)

		// Slot state machine endpoints
		r.Post("/slots", slots.open)
		r.Get("/slots/{id}", slots.get)
		r.Post("/slots/{id}/book", slots.book)
		r.Post("/slots/{id}/cancel", slots.cancel)
	})

	return r
}
