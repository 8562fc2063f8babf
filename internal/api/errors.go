package api

import (
	"errors"
	"net/http"

	"github.com/hackgods/provider-appointment-booking/internal/appointment"
	"github.com/hackgods/provider-appointment-booking/internal/party"
	"github.com/hackgods/provider-appointment-booking/internal/slot"
)

// statusFor maps domain failures onto HTTP statuses and stable error codes.
func statusFor(err error) (int, string) {
	var vErr *appointment.ValidationError
	var unhandled *slot.UnhandledCommandError

	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, slot.ErrInvalidInterval),
		errors.Is(err, party.ErrInvalidNationalID),
		errors.Is(err, party.ErrLookupKeyRequired):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, appointment.ErrNotFound):
		return http.StatusNotFound, "appointment_not_found"
	case errors.Is(err, party.ErrNotFound), errors.Is(err, appointment.ErrUnknownParty):
		return http.StatusNotFound, "party_not_found"
	case errors.Is(err, slot.ErrSlotNotFound):
		return http.StatusNotFound, "slot_not_found"
	case errors.Is(err, party.ErrRoleMismatch):
		return http.StatusForbidden, "role_mismatch"
	case errors.Is(err, appointment.ErrSlotUnavailable):
		return http.StatusConflict, "slot_unavailable"
	case errors.Is(err, appointment.ErrProviderBusy):
		return http.StatusConflict, "provider_busy"
	case errors.As(err, &unhandled):
		return http.StatusConflict, "unhandled_transition"
	case errors.Is(err, slot.ErrConcurrentAppend):
		return http.StatusConflict, "concurrent_update"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
