package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Slot is the half-open interval [Start, End) on a provider's calendar.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the intervals intersect. Slots that only touch
// (a.End == b.Start) do not overlap.
func (s Slot) Overlaps(o Slot) bool {
	return s.Start.Before(o.End) && s.End.After(o.Start)
}

func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func (s Slot) UTC() Slot {
	return Slot{Start: s.Start.UTC(), End: s.End.UTC()}
}

// Validate rejects empty or inverted slots and slots starting before now.
func (s Slot) Validate(now time.Time) error {
	if s.Start.IsZero() || s.End.IsZero() {
		return validationError(ErrInvalidSlot, "slot start and end are required")
	}
	if !s.Start.Before(s.End) {
		return validationError(ErrInvalidSlot, "slot start must be before end")
	}
	if s.Start.Before(now) {
		return validationError(ErrInvalidSlot, "slot start must not be in the past")
	}
	return nil
}

type Appointment struct {
	ID         uuid.UUID `json:"id"`
	Slot       Slot      `json:"slot"`
	ProviderID uuid.UUID `json:"provider_id"`
	ClientID   uuid.UUID `json:"client_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Involves reports whether partyID is the provider or the client.
func (a Appointment) Involves(partyID uuid.UUID) bool {
	return a.ProviderID == partyID || a.ClientID == partyID
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	OccurredAt    time.Time
	CreatedAt     time.Time
}
