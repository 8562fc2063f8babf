package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/hackgods/provider-appointment-booking/internal/slot")

// Service runs commands against persisted slot logs.
type Service struct {
	store  Store
	env    Env
	logger *zap.Logger
}

func NewService(store Store, env Env, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, env: env, logger: logger}
}

// Open creates a new slot booked for [start, end).
func (s *Service) Open(ctx context.Context, start, end time.Time) (State, []Event, error) {
	ctx, span := tracer.Start(ctx, "slot.Open")
	defer span.End()

	stream := NewStream(s.env)
	events, state, err := stream.Handle(Create(start.UTC(), end.UTC()))
	if err != nil {
		return State{}, nil, err
	}
	slotID := state.ID
	span.SetAttributes(attribute.String("slot.id", slotID.String()))

	if err := s.store.Append(ctx, slotID, 0, events); err != nil {
		return State{}, nil, fmt.Errorf("append slot events: %w", err)
	}

	s.logger.Info("slot opened",
		zap.String("slot_id", slotID.String()),
		zap.Time("start", start),
		zap.Time("end", end),
	)
	return state, events, nil
}

// Get replays the slot log.
func (s *Service) Get(ctx context.Context, slotID uuid.UUID) (State, []Event, error) {
	events, err := s.store.Load(ctx, slotID)
	if err != nil {
		return State{}, nil, fmt.Errorf("load slot events: %w", err)
	}
	if len(events) == 0 {
		return State{}, nil, ErrSlotNotFound
	}
	return Fold(events...), events, nil
}

// Handle loads the slot, decides cmd and appends the produced events. A lost
// append race surfaces as ErrConcurrentAppend.
func (s *Service) Handle(ctx context.Context, slotID uuid.UUID, cmd Command) (State, []Event, error) {
	ctx, span := tracer.Start(ctx, "slot.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("slot.id", slotID.String()),
		attribute.String("slot.command", string(cmd.Type)),
	)

	if err := cmd.Validate(); err != nil {
		return State{}, nil, err
	}

	history, err := s.store.Load(ctx, slotID)
	if err != nil {
		return State{}, nil, fmt.Errorf("load slot events: %w", err)
	}
	if len(history) == 0 {
		return State{}, nil, ErrSlotNotFound
	}

	stream := NewStream(s.env, history...)
	expected := stream.Version()
	state := stream.State()

	produced, next, err := stream.Handle(cmd)
	if err != nil {
		return state, nil, err
	}
	if err := s.store.Append(ctx, slotID, expected, produced); err != nil {
		return state, nil, fmt.Errorf("append slot events: %w", err)
	}

	s.logger.Info("slot command handled",
		zap.String("slot_id", slotID.String()),
		zap.String("command", string(cmd.Type)),
		zap.Stringer("from", state.Kind),
		zap.Stringer("to", next.Kind),
	)
	return next, produced, nil
}
