package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind int

const (
	KindInitial Kind = iota
	KindFree
	KindBooked
)

func (k Kind) String() string {
	switch k {
	case KindInitial:
		return "initial"
	case KindFree:
		return "free"
	case KindBooked:
		return "booked"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is the folded state of one slot. ID is zero while Initial; Start and
// End are set only while Booked.
type State struct {
	Kind  Kind
	ID    uuid.UUID
	Start time.Time
	End   time.Time
}

func Initial() State {
	return State{Kind: KindInitial}
}

func Free(id uuid.UUID) State {
	return State{Kind: KindFree, ID: id}
}

func Booked(id uuid.UUID, start, end time.Time) State {
	return State{Kind: KindBooked, ID: id, Start: start, End: end}
}

func (s State) String() string {
	switch s.Kind {
	case KindFree:
		return fmt.Sprintf("free(%s)", s.ID)
	case KindBooked:
		return fmt.Sprintf("booked(%s, %s, %s)", s.ID, s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	default:
		return s.Kind.String()
	}
}
