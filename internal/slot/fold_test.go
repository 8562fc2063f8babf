package slot

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var (
	t0 = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(30 * time.Minute)
)

func TestFold_Empty(t *testing.T) {
	assert.Equal(t, Initial(), Fold())
}

func TestFold_Booked(t *testing.T) {
	id := uuid.New()
	got := Fold(BookedEvent(id, t0, t1, t0))
	assert.Equal(t, Booked(id, t0, t1), got)
}

func TestFold_BookedThenCanceled(t *testing.T) {
	id := uuid.New()
	got := Fold(
		BookedEvent(id, t0, t1, t0),
		CanceledEvent(id, t0.Add(time.Hour), t1.Add(time.Hour), t1),
	)
	assert.Equal(t, Free(id), got)
}

func TestFold_RebookKeepsIdentity(t *testing.T) {
	id := uuid.New()
	later := t1.Add(time.Hour)
	got := Fold(
		BookedEvent(id, t0, t1, t0),
		CanceledEvent(id, t0, t1, t0),
		BookedEvent(uuid.New(), t1, later, t1),
	)
	assert.Equal(t, Booked(id, t1, later), got)
}

func TestFold_IsOrderDependent(t *testing.T) {
	id := uuid.New()
	booked := BookedEvent(id, t0, t1, t0)
	canceled := CanceledEvent(id, t0, t1, t1)

	assert.Equal(t, Free(id), Fold(booked, canceled))
	assert.Equal(t, Booked(id, t0, t1), Fold(canceled, booked))
}

func TestEvolve_NoOpCombinations(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name  string
		state State
		evt   Event
	}{
		{name: "initial canceled", state: Initial(), evt: CanceledEvent(id, t0, t1, t0)},
		{name: "free canceled", state: Free(id), evt: CanceledEvent(id, t0, t1, t0)},
		{name: "booked booked", state: Booked(id, t0, t1), evt: BookedEvent(id, t1, t1.Add(time.Hour), t0)},
		{name: "unknown event", state: Free(id), evt: Event{Type: "slot.moved", SlotID: id}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.state, Evolve(tt.state, tt.evt))
		})
	}
}

func TestFoldFrom_ContinuesFromState(t *testing.T) {
	id := uuid.New()
	got := FoldFrom(Booked(id, t0, t1), CanceledEvent(id, t0, t1, t1))
	assert.Equal(t, Free(id), got)
}
