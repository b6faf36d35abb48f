package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/room"
)

func getRoomHandler(rooms *room.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		rm, err := rooms.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRoomResponse(rm))
	}
}

func listRoomsHandler(rooms *room.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, err := uuid.Parse(r.URL.Query().Get("clinic_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}

		list, err := rooms.ListByClinic(r.Context(), clinicID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]RoomResponse, 0, len(list))
		for i := range list {
			resp = append(resp, toRoomResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func occupyRoomHandler(rooms *room.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req OccupyRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}

		var staffID *uuid.UUID
		if req.StaffID != "" {
			parsed, err := uuid.Parse(req.StaffID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
				return
			}
			staffID = &parsed
		}

		if err := rooms.Occupy(r.Context(), id, appointmentID, staffID); err != nil {
			writeDomainError(w, err)
			return
		}

		rm, err := rooms.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoomResponse(rm))
	}
}

func freeRoomHandler(rooms *room.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		if err := rooms.Free(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}

		rm, err := rooms.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoomResponse(rm))
	}
}
