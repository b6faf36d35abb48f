package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/clinicops/clinic-scheduling/internal/appointment"
	"github.com/clinicops/clinic-scheduling/internal/queue"
	"github.com/clinicops/clinic-scheduling/internal/room"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Details: details,
	})
}

// writeDomainError maps domain errors onto HTTP statuses with stable
// machine-readable codes, so the UI can tell "that time was just taken"
// apart from "you can't cancel a completed visit".
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrPractitionerNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, queue.ErrQueueNotFound):
		writeError(w, http.StatusNotFound, "queue_not_found", err.Error())
	case errors.Is(err, queue.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "queue_entry_not_found", err.Error())
	case errors.Is(err, room.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room_not_found", err.Error())

	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "slot no longer available, please choose another")
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, appointment.ErrAppointmentClosed):
		writeError(w, http.StatusConflict, "appointment_closed", "this appointment can no longer be modified")
	case errors.Is(err, appointment.ErrNotAcceptingPatients):
		writeError(w, http.StatusConflict, "not_accepting_patients", err.Error())
	case errors.Is(err, queue.ErrQueueStale):
		writeError(w, http.StatusConflict, "queue_stale", "queue was modified concurrently, re-fetch and retry")
	case errors.Is(err, queue.ErrAlreadyQueued):
		writeError(w, http.StatusConflict, "already_queued", err.Error())
	case errors.Is(err, room.ErrRoomUnavailable):
		writeError(w, http.StatusConflict, "room_unavailable", err.Error())
	case errors.Is(err, room.ErrRoomNotOccupied):
		writeError(w, http.StatusConflict, "room_not_occupied", err.Error())

	case errors.Is(err, appointment.ErrCancelReasonRequired):
		writeError(w, http.StatusBadRequest, "cancel_reason_required", err.Error())
	case errors.Is(err, queue.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, "invalid_order", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
