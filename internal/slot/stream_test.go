package slot

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_HandleAppends(t *testing.T) {
	s := NewStream(Env{})

	produced, state, err := s.Handle(Create(t0, t1))
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.Equal(t, KindBooked, state.Kind)
	assert.Equal(t, 1, s.Version())

	_, state, err = s.Handle(Cancel())
	require.NoError(t, err)
	assert.Equal(t, Free(produced[0].SlotID), state)
	assert.Equal(t, state, s.State())
}

func TestStream_UnhandledLeavesLogUntouched(t *testing.T) {
	s := NewStream(Env{})

	_, _, err := s.Handle(Cancel())
	var unhandled *UnhandledCommandError
	require.True(t, errors.As(err, &unhandled))
	assert.Equal(t, 0, s.Version())
}

func TestStream_InvalidInterval(t *testing.T) {
	s := NewStream(Env{})
	_, _, err := s.Handle(Create(t1, t0))
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestStream_EventsIsACopy(t *testing.T) {
	s := NewStream(Env{})
	_, _, err := s.Handle(Create(t0, t1))
	require.NoError(t, err)

	events := s.Events()
	events[0].Type = EventTypeCanceled
	assert.Equal(t, EventTypeBooked, s.Events()[0].Type)
}

func TestStream_ConcurrentCreatesOnlyOneWins(t *testing.T) {
	s := NewStream(Env{})

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := s.Handle(Create(t0, t1)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, s.Version())
}
