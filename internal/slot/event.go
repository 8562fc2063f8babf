package slot

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeBooked   EventType = "slot.booked"
	EventTypeCanceled EventType = "slot.canceled"
)

// Event is a fact appended to a slot's log. Both event types carry the booked
// interval so a log can be audited without replaying it.
type Event struct {
	Type       EventType `json:"type"`
	SlotID     uuid.UUID `json:"slot_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	OccurredAt time.Time `json:"occurred_at"`
}

func BookedEvent(slotID uuid.UUID, start, end, occurredAt time.Time) Event {
	return Event{Type: EventTypeBooked, SlotID: slotID, Start: start, End: end, OccurredAt: occurredAt}
}

func CanceledEvent(slotID uuid.UUID, start, end, occurredAt time.Time) Event {
	return Event{Type: EventTypeCanceled, SlotID: slotID, Start: start, End: end, OccurredAt: occurredAt}
}
