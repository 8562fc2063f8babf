package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Env supplies the clock and identity generator Decide needs. Zero fields
// fall back to time.Now and uuid.New.
type Env struct {
	Now   func() time.Time
	NewID func() uuid.UUID
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

func (e Env) newID() uuid.UUID {
	if e.NewID == nil {
		return uuid.New()
	}
	return e.NewID()
}

// UnhandledCommandError reports a command that has no transition from the
// current state. Decide panics with it; callers at a boundary should check
// Allowed first.
type UnhandledCommandError struct {
	State   Kind
	Command CommandType
}

func (e *UnhandledCommandError) Error() string {
	return fmt.Sprintf("command %s is not handled in state %s", e.Command, e.State)
}

// Allowed reports whether Decide handles cmd in state. The full matrix is:
//
//	initial + create -> booked
//	free    + create -> booked
//	booked  + cancel -> canceled
//	initial + cancel, free + cancel, booked + create -> unhandled
func Allowed(state State, cmd Command) error {
	switch {
	case cmd.Type == CommandTypeCreate && (state.Kind == KindInitial || state.Kind == KindFree):
		return nil
	case cmd.Type == CommandTypeCancel && state.Kind == KindBooked:
		return nil
	}
	return &UnhandledCommandError{State: state.Kind, Command: cmd.Type}
}

// Decide returns the events cmd produces against state. It never mutates
// state and panics on a pair Allowed rejects.
func Decide(state State, cmd Command, env Env) []Event {
	if err := Allowed(state, cmd); err != nil {
		panic(err)
	}

	switch cmd.Type {
	case CommandTypeCreate:
		id := state.ID
		if state.Kind == KindInitial {
			id = env.newID()
		}
		return []Event{BookedEvent(id, cmd.Start, cmd.End, env.now())}
	default:
		return []Event{CanceledEvent(state.ID, state.Start, state.End, env.now())}
	}
}
