package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/appointment"
	"github.com/clinicops/clinic-scheduling/internal/queue"
)

func getQueueHandler(queues *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		q, err := queues.GetByID(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueResponse(q))
	}
}

func findQueueHandler(queues *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, err := uuid.Parse(r.URL.Query().Get("clinic_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}

		dateStr := r.URL.Query().Get("date")
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		key := queue.QueueKey{
			ClinicID:    clinicID,
			ServiceDate: date,
		}
		if p := r.URL.Query().Get("practitioner_id"); p != "" {
			practitionerID, err := uuid.Parse(p)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
				return
			}
			key.PractitionerID = &practitionerID
		}
		if s := r.URL.Query().Get("specialty"); s != "" {
			key.Specialty = &s
		}

		q, err := queues.Get(r.Context(), key)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueResponse(q))
	}
}

func callNextHandler(queues *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		entry, err := queues.CallNext(r.Context(), id)
		if err != nil {
			// An empty queue is a no-op notice for the front desk, not an
			// error banner.
			if errors.Is(err, queue.ErrEmptyQueue) {
				writeJSON(w, http.StatusOK, CallNextResponse{Empty: true})
				return
			}
			writeDomainError(w, err)
			return
		}

		resp := toQueueEntryResponse(*entry)
		writeJSON(w, http.StatusOK, CallNextResponse{Entry: &resp})
	}
}

func reorderQueueHandler(queues *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req ReorderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		order := make([]queue.EntryPosition, 0, len(req.Entries))
		for _, e := range req.Entries {
			appointmentID, err := uuid.Parse(e.AppointmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
				return
			}
			order = append(order, queue.EntryPosition{
				AppointmentID: appointmentID,
				Position:      e.Position,
			})
		}

		q, err := queues.Reorder(r.Context(), id, order)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueResponse(q))
	}
}

func completeQueueEntryHandler(queues *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queueID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		appointmentID, ok := parseIDParam(w, r, "appointmentID")
		if !ok {
			return
		}

		entry, err := queues.Complete(r.Context(), queueID, appointmentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueEntryResponse(*entry))
	}
}

func admitWalkInHandler(queues *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WalkInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		clinicID, err := uuid.Parse(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}
		practitionerID, err := uuid.Parse(req.PractitionerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		entry, err := queues.AdmitWalkIn(r.Context(), clinicID, practitionerID, patientID, req.Reason, appointment.Priority(req.Priority))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toQueueEntryResponse(*entry))
	}
}
