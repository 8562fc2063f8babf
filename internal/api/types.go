package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/provider-appointment-booking/internal/appointment"
	"github.com/hackgods/provider-appointment-booking/internal/slot"
)

type SlotRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CreateAppointmentRequest identifies parties by login or national id. The
// provider fields are read only when an administrator books for someone else.
type CreateAppointmentRequest struct {
	ProviderLogin      string      `json:"provider_login,omitempty"`
	ProviderNationalID string      `json:"provider_national_id,omitempty"`
	ClientLogin        string      `json:"client_login,omitempty"`
	ClientNationalID   string      `json:"client_national_id,omitempty"`
	Slot               SlotRequest `json:"slot"`
}

type AppointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	ClientID   uuid.UUID `json:"client_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	CreatedAt  time.Time `json:"created_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Count        int                   `json:"count"`
}

type SlotEventResponse struct {
	Type       string    `json:"type"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	OccurredAt time.Time `json:"occurred_at"`
}

type SlotResponse struct {
	ID     uuid.UUID           `json:"id"`
	State  string              `json:"state"`
	Start  *time.Time          `json:"start,omitempty"`
	End    *time.Time          `json:"end,omitempty"`
	Events []SlotEventResponse `json:"events"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		ProviderID: a.ProviderID,
		ClientID:   a.ClientID,
		Start:      a.Slot.Start,
		End:        a.Slot.End,
		CreatedAt:  a.CreatedAt,
	}
}

func toAppointmentList(list []appointment.Appointment) AppointmentListResponse {
	out := AppointmentListResponse{Appointments: make([]AppointmentResponse, 0, len(list))}
	for _, a := range list {
		out.Appointments = append(out.Appointments, toAppointmentResponse(a))
	}
	out.Count = len(out.Appointments)
	return out
}

func toSlotResponse(state slot.State, events []slot.Event) SlotResponse {
	resp := SlotResponse{
		ID:     state.ID,
		State:  state.Kind.String(),
		Events: make([]SlotEventResponse, 0, len(events)),
	}
	if state.Kind == slot.KindBooked {
		start, end := state.Start, state.End
		resp.Start = &start
		resp.End = &end
	}
	for _, e := range events {
		resp.Events = append(resp.Events, SlotEventResponse{
			Type:       string(e.Type),
			Start:      e.Start,
			End:        e.End,
			OccurredAt: e.OccurredAt,
		})
	}
	return resp
}
