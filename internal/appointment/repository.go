package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CalendarTx is one provider's calendar inside a transaction that holds the
// provider's lock.
type CalendarTx interface {
	ListOverlapping(ctx context.Context, providerID uuid.UUID, slot Slot) ([]Appointment, error)
	Insert(ctx context.Context, appt Appointment) (*Appointment, error)
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// InProviderTx runs fn with the provider's calendar locked until fn returns.
	InProviderTx(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx CalendarTx) error) error

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Delete removes the appointment and returns it, or ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) (*Appointment, error)

	ListUpcomingByProvider(ctx context.Context, providerID uuid.UUID, from time.Time, limit int) ([]Appointment, error)
	ListUpcomingByClient(ctx context.Context, clientID uuid.UUID, from time.Time, limit int) ([]Appointment, error)

	// InsertEvent reports false when the event was already recorded.
	InsertEvent(ctx context.Context, ev EventLog) (bool, error)
}
