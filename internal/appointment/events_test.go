package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type capturePublisher struct {
	payloads [][]byte
	err      error
}

func (p *capturePublisher) Publish(ctx context.Context, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestNotifier_EmitCarriesFullAppointment(t *testing.T) {
	pub := &capturePublisher{}
	n := NewNotifier(pub, zaptest.NewLogger(t))
	n.now = func() time.Time { return now }

	appt := Appointment{
		ID:         uuid.New(),
		ProviderID: uuid.New(),
		ClientID:   uuid.New(),
		Slot:       Slot{Start: at(10, 0), End: at(11, 0)},
		CreatedAt:  now,
	}
	n.Emit(context.Background(), ActionCreate, appt)

	require.Len(t, pub.payloads, 1)
	got, err := DecodeNotification(pub.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, got.ActionType)
	assert.Equal(t, now, got.OccurredAt)
	assert.Equal(t, appt, got.Appointment)
}

func TestNotifier_PublishFailureIsSwallowed(t *testing.T) {
	n := NewNotifier(&capturePublisher{err: errors.New("stream down")}, zaptest.NewLogger(t))
	assert.NotPanics(t, func() {
		n.Emit(context.Background(), ActionDelete, Appointment{ID: uuid.New()})
	})

	var nilNotifier *Notifier
	assert.NotPanics(t, func() {
		nilNotifier.Emit(context.Background(), ActionDelete, Appointment{ID: uuid.New()})
	})
}

func TestDecodeNotification_UnknownAction(t *testing.T) {
	_, err := DecodeNotification([]byte(`{"action_type":"update","occurred_at":"2025-03-10T08:00:00Z","appointment":{}}`))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = DecodeNotification([]byte(`not json`))
	assert.Error(t, err)
}

func TestRecordNotification_Deduplicates(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, fakeLocker{}, nil)
	n := Notification{
		ActionType:  ActionCreate,
		OccurredAt:  now,
		Appointment: Appointment{ID: uuid.New()},
	}

	inserted, err := svc.RecordNotification(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = svc.RecordNotification(context.Background(), n)
	require.NoError(t, err)
	assert.False(t, inserted, "redelivery is dropped")

	n.ActionType = ActionDelete
	inserted, err = svc.RecordNotification(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, inserted, "delete of the same appointment is a distinct event")
}
