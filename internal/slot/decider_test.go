package slot

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedEnv(id uuid.UUID, now time.Time) Env {
	return Env{
		Now:   func() time.Time { return now },
		NewID: func() uuid.UUID { return id },
	}
}

func TestDecide_InitialCreate(t *testing.T) {
	id := uuid.New()
	events := Decide(Initial(), Create(t0, t1), fixedEnv(id, t0))

	require.Len(t, events, 1)
	assert.Equal(t, BookedEvent(id, t0, t1, t0), events[0])
}

func TestDecide_FreeCreateKeepsSlotID(t *testing.T) {
	id := uuid.New()
	events := Decide(Free(id), Create(t0, t1), fixedEnv(uuid.New(), t0))

	require.Len(t, events, 1)
	assert.Equal(t, EventTypeBooked, events[0].Type)
	assert.Equal(t, id, events[0].SlotID)
}

func TestDecide_BookedCancel(t *testing.T) {
	id := uuid.New()
	events := Decide(Booked(id, t0, t1), Cancel(), fixedEnv(uuid.New(), t1))

	require.Len(t, events, 1)
	assert.Equal(t, CanceledEvent(id, t0, t1, t1), events[0])
}

func TestDecide_UnhandledPairsPanic(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name  string
		state State
		cmd   Command
	}{
		{name: "booked create", state: Booked(id, t0, t1), cmd: Create(t1, t1.Add(time.Hour))},
		{name: "free cancel", state: Free(id), cmd: Cancel()},
		{name: "initial cancel", state: Initial(), cmd: Cancel()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PanicsWithError(t, (&UnhandledCommandError{State: tt.state.Kind, Command: tt.cmd.Type}).Error(), func() {
				Decide(tt.state, tt.cmd, Env{})
			})

			err := Allowed(tt.state, tt.cmd)
			var unhandled *UnhandledCommandError
			require.True(t, errors.As(err, &unhandled))
			assert.Equal(t, tt.state.Kind, unhandled.State)
		})
	}
}

func TestDecide_DoesNotMutateState(t *testing.T) {
	id := uuid.New()
	state := Free(id)
	_ = Decide(state, Create(t0, t1), Env{})
	assert.Equal(t, Free(id), state)
}

func TestDecideThenFold_RoundTrip(t *testing.T) {
	env := fixedEnv(uuid.New(), t0)

	var log []Event
	log = append(log, Decide(Fold(log...), Create(t0, t1), env)...)
	log = append(log, Decide(Fold(log...), Cancel(), env)...)
	log = append(log, Decide(Fold(log...), Create(t1, t1.Add(time.Hour)), env)...)

	require.Len(t, log, 3)
	assert.Equal(t, Booked(log[0].SlotID, t1, t1.Add(time.Hour)), Fold(log...))
}

func TestCommand_Validate(t *testing.T) {
	assert.NoError(t, Create(t0, t1).Validate())
	assert.ErrorIs(t, Create(t1, t0).Validate(), ErrInvalidInterval)
	assert.ErrorIs(t, Create(t0, t0).Validate(), ErrInvalidInterval)
	assert.NoError(t, Cancel().Validate())
}
