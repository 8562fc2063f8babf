package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionDelete ActionType = "delete"
)

const (
	EventAppointmentCreated = "APPOINTMENT_CREATED"
	EventAppointmentDeleted = "APPOINTMENT_DELETED"
)

var ErrUnknownAction = errors.New("unknown notification action")

// Notification is emitted after a successful create or delete and carries the
// full appointment so both parties can be notified. Delivery is at least
// once; (appointment id, action, occurred at) identifies a notification.
type Notification struct {
	ActionType  ActionType  `json:"action_type"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Appointment Appointment `json:"appointment"`
}

func (n Notification) eventType() (string, error) {
	switch n.ActionType {
	case ActionCreate:
		return EventAppointmentCreated, nil
	case ActionDelete:
		return EventAppointmentDeleted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, n.ActionType)
	}
}

func DecodeNotification(raw []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	if _, err := n.eventType(); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Publisher delivers an encoded notification to the side channel.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Notifier emits notifications without failing the operation that caused
// them. Errors are logged.
type Notifier struct {
	pub    Publisher
	now    func() time.Time
	logger *zap.Logger
}

func NewNotifier(pub Publisher, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pub: pub, now: time.Now, logger: logger}
}

func (n *Notifier) Emit(ctx context.Context, action ActionType, appt Appointment) {
	if n == nil || n.pub == nil {
		return
	}

	payload, err := json.Marshal(Notification{
		ActionType:  action,
		OccurredAt:  n.now().UTC().Truncate(time.Microsecond),
		Appointment: appt,
	})
	if err != nil {
		n.logger.Error("encode notification", zap.Error(err))
		return
	}

	if err := n.pub.Publish(ctx, payload); err != nil {
		n.logger.Warn("publish notification failed",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

// RecordNotification writes n to the event log. It reports false when the
// same notification was already recorded, which is how redeliveries are
// dropped.
func (s *Service) RecordNotification(ctx context.Context, n Notification) (bool, error) {
	eventType, err := n.eventType()
	if err != nil {
		return false, err
	}

	payload, err := json.Marshal(n.Appointment)
	if err != nil {
		return false, fmt.Errorf("encode appointment: %w", err)
	}

	apptID := n.Appointment.ID
	inserted, err := s.repo.InsertEvent(ctx, EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       payload,
		OccurredAt:    n.OccurredAt.UTC(),
		CreatedAt:     s.now(),
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}
