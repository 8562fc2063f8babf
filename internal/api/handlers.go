package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/provider-appointment-booking/internal/appointment"
	"github.com/hackgods/provider-appointment-booking/internal/party"
)

const defaultListCount = 10

type appointmentHandlers struct {
	svc      AppointmentService
	dir      party.Directory
	notifier Notifier
	logger   *zap.Logger
}

func (h *appointmentHandlers) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "caller identity is required")
		return
	}

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	var provider *party.Party
	switch {
	case caller.Can(party.CapBookAnyCalendar) == nil:
		p, err := party.Resolve(r.Context(), h.dir, req.ProviderLogin, req.ProviderNationalID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		if !p.HasRole(party.RoleProvider) {
			writeError(w, http.StatusBadRequest, "invalid_provider", "target party is not a provider")
			return
		}
		provider = p
	case caller.Can(party.CapBookOwnCalendar) == nil:
		if req.ProviderLogin != "" && req.ProviderLogin != caller.Login {
			writeError(w, http.StatusForbidden, "role_mismatch", "providers can only book their own calendar")
			return
		}
		provider = caller
	default:
		h.writeDomainError(w, caller.Can(party.CapBookOwnCalendar))
		return
	}

	client, err := party.Resolve(r.Context(), h.dir, req.ClientLogin, req.ClientNationalID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), client.ID, provider.ID, appointment.Slot{
		Start: req.Slot.Start,
		End:   req.Slot.End,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.notifier.Emit(r.Context(), appointment.ActionCreate, *appt)
	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *appointmentHandlers) delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "caller identity is required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := canCancel(caller, appt); err != nil {
		h.writeDomainError(w, err)
		return
	}

	removed, err := h.svc.DeleteAppointment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.notifier.Emit(r.Context(), appointment.ActionDelete, *removed)
	writeJSON(w, http.StatusOK, toAppointmentResponse(*removed))
}

// canCancel allows administrators and the provider of record.
func canCancel(caller *party.Party, appt *appointment.Appointment) error {
	if caller.Can(party.CapCancelAny) == nil {
		return nil
	}
	if err := caller.Can(party.CapCancelOwn); err != nil {
		return err
	}
	if appt.ProviderID != caller.ID {
		return fmt.Errorf("%w: only the provider of record may cancel", party.ErrRoleMismatch)
	}
	return nil
}

func (h *appointmentHandlers) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "caller identity is required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if !appt.Involves(caller.ID) && caller.Can(party.CapListAny) != nil {
		writeError(w, http.StatusForbidden, "role_mismatch", "caller is not a party of this appointment")
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *appointmentHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "caller identity is required")
		return
	}

	count, ok := parseCount(w, r)
	if !ok {
		return
	}

	if err := caller.Can(party.CapListOwn); err != nil {
		h.writeDomainError(w, err)
		return
	}

	list, err := h.svc.ListUpcomingForParty(r.Context(), caller.ID, *caller.Role, count)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentList(list))
}

func (h *appointmentHandlers) listForProvider(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "caller identity is required")
		return
	}

	count, ok := parseCount(w, r)
	if !ok {
		return
	}

	if err := caller.Can(party.CapListAny); err != nil {
		h.writeDomainError(w, err)
		return
	}

	provider, err := h.dir.GetByLogin(r.Context(), chi.URLParam(r, "login"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !provider.HasRole(party.RoleProvider) {
		writeError(w, http.StatusNotFound, "provider_not_found", "no provider with this login")
		return
	}

	list, err := h.svc.ListUpcomingForParty(r.Context(), provider.ID, party.RoleProvider, count)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentList(list))
}

// parseCount reads ?count=, defaulting when absent. Range checks belong to
// the booking engine.
func parseCount(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("count"))
	if raw == "" {
		return defaultListCount, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_count", "count must be an integer")
		return 0, false
	}
	return n, true
}

func (h *appointmentHandlers) writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}
