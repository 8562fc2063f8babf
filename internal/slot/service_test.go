package slot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memStore struct {
	mu   sync.Mutex
	logs map[uuid.UUID][]Event
}

func newMemStore() *memStore {
	return &memStore{logs: map[uuid.UUID][]Event{}}
}

func (m *memStore) Load(ctx context.Context, slotID uuid.UUID) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.logs[slotID]))
	copy(out, m.logs[slotID])
	return out, nil
}

func (m *memStore) Append(ctx context.Context, slotID uuid.UUID, expectedVersion int, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.logs[slotID]) != expectedVersion {
		return fmt.Errorf("%w: slot %s", ErrConcurrentAppend, slotID)
	}
	m.logs[slotID] = append(m.logs[slotID], events...)
	return nil
}

func TestService_OpenHandleGet(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Env{}, zaptest.NewLogger(t))
	ctx := context.Background()

	state, events, err := svc.Open(ctx, t0, t1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, KindBooked, state.Kind)

	id := state.ID

	state, _, err = svc.Handle(ctx, id, Cancel())
	require.NoError(t, err)
	assert.Equal(t, Free(id), state)

	state, _, err = svc.Handle(ctx, id, Create(t1, t1.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, Booked(id, t1, t1.Add(time.Hour)), state)

	got, log, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, state, got)
	assert.Len(t, log, 3)
}

func TestService_HandleUnknownSlot(t *testing.T) {
	svc := NewService(newMemStore(), Env{}, nil)
	_, _, err := svc.Handle(context.Background(), uuid.New(), Cancel())
	assert.ErrorIs(t, err, ErrSlotNotFound)

	_, _, err = svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestService_HandleUnhandledPair(t *testing.T) {
	svc := NewService(newMemStore(), Env{}, nil)
	ctx := context.Background()

	state, _, err := svc.Open(ctx, t0, t1)
	require.NoError(t, err)

	_, _, err = svc.Handle(ctx, state.ID, Create(t1, t1.Add(time.Hour)))
	var unhandled *UnhandledCommandError
	require.True(t, errors.As(err, &unhandled))
	assert.Equal(t, KindBooked, unhandled.State)
}

func TestService_OpenRejectsInvalidInterval(t *testing.T) {
	svc := NewService(newMemStore(), Env{}, nil)
	_, _, err := svc.Open(context.Background(), t1, t0)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

type racingStore struct {
	*memStore
}

// Append behaves as if another writer appended first.
func (r racingStore) Append(ctx context.Context, slotID uuid.UUID, expectedVersion int, events []Event) error {
	if expectedVersion > 0 {
		return fmt.Errorf("%w: slot %s", ErrConcurrentAppend, slotID)
	}
	return r.memStore.Append(ctx, slotID, expectedVersion, events)
}

func TestService_LostAppendRace(t *testing.T) {
	svc := NewService(racingStore{newMemStore()}, Env{}, nil)
	ctx := context.Background()

	state, _, err := svc.Open(ctx, t0, t1)
	require.NoError(t, err)

	_, _, err = svc.Handle(ctx, state.ID, Cancel())
	assert.ErrorIs(t, err, ErrConcurrentAppend)
}
