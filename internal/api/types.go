package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/appointment"
	"github.com/clinicops/clinic-scheduling/internal/availability"
	"github.com/clinicops/clinic-scheduling/internal/queue"
	"github.com/clinicops/clinic-scheduling/internal/room"
)

type BookAppointmentRequest struct {
	PatientID      string    `json:"patient_id"`
	PractitionerID string    `json:"practitioner_id"`
	ClinicID       string    `json:"clinic_id"`
	Start          time.Time `json:"start"`
	Reason         string    `json:"reason"`
	Modality       string    `json:"modality,omitempty"`
	Priority       string    `json:"priority,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

type StartAppointmentRequest struct {
	RoomID  string `json:"room_id,omitempty"`
	StaffID string `json:"staff_id,omitempty"`
}

type WalkInRequest struct {
	ClinicID       string `json:"clinic_id"`
	PractitionerID string `json:"practitioner_id"`
	PatientID      string `json:"patient_id"`
	Reason         string `json:"reason,omitempty"`
	Priority       string `json:"priority,omitempty"`
}

type ReorderEntry struct {
	AppointmentID string `json:"appointment_id"`
	Position      int    `json:"position"`
}

type ReorderRequest struct {
	Entries []ReorderEntry `json:"entries"`
}

type OccupyRoomRequest struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	ClinicID        uuid.UUID  `json:"clinic_id"`
	PractitionerID  uuid.UUID  `json:"practitioner_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	Start           time.Time  `json:"start"`
	DurationMinutes int        `json:"duration_minutes"`
	Modality        string     `json:"modality"`
	Priority        string     `json:"priority"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason,omitempty"`
	RoomID          *uuid.UUID `json:"room_id,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CheckedInAt     *time.Time `json:"checked_in_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CancelReason    *string    `json:"cancel_reason,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		ClinicID:        a.ClinicID,
		PractitionerID:  a.PractitionerID,
		PatientID:       a.PatientID,
		Start:           a.Start,
		DurationMinutes: a.DurationMinutes,
		Modality:        string(a.Modality),
		Priority:        string(a.Priority),
		Status:          string(a.Status),
		Reason:          a.Reason,
		RoomID:          a.RoomID,
		ConfirmedAt:     a.ConfirmedAt,
		CheckedInAt:     a.CheckedInAt,
		StartedAt:       a.StartedAt,
		CompletedAt:     a.CompletedAt,
		CancelledAt:     a.CancelledAt,
		CancelReason:    a.CancelReason,
	}
}

type SlotResponse struct {
	Start     time.Time `json:"start"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	Available bool      `json:"available"`
}

type SlotsResponse struct {
	Date  string         `json:"date"`
	Open  bool           `json:"open"`
	Slots []SlotResponse `json:"slots"`
}

func toSlotsResponse(date time.Time, sched availability.DaySchedule) SlotsResponse {
	resp := SlotsResponse{
		Date:  date.Format("2006-01-02"),
		Open:  sched.Open,
		Slots: make([]SlotResponse, 0, len(sched.Slots)),
	}
	for _, s := range sched.Slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			Start:     s.Start,
			ClinicID:  s.ClinicID,
			Available: s.Available,
		})
	}
	return resp
}

type QueueEntryResponse struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	Position      int        `json:"position,omitempty"`
	Status        string     `json:"status"`
	CalledAt      *time.Time `json:"called_at,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type QueueResponse struct {
	ID             uuid.UUID            `json:"id"`
	ClinicID       uuid.UUID            `json:"clinic_id"`
	PractitionerID *uuid.UUID           `json:"practitioner_id,omitempty"`
	Specialty      *string              `json:"specialty,omitempty"`
	ServiceDate    string               `json:"service_date"`
	AvgWaitMinutes float64              `json:"avg_wait_minutes"`
	Version        int64                `json:"version"`
	LastUpdated    time.Time            `json:"last_updated"`
	Entries        []QueueEntryResponse `json:"entries"`
}

func toQueueEntryResponse(e queue.QueueEntry) QueueEntryResponse {
	return QueueEntryResponse{
		AppointmentID: e.AppointmentID,
		Position:      e.Position,
		Status:        string(e.Status),
		CalledAt:      e.CalledAt,
		StartedAt:     e.StartedAt,
		CompletedAt:   e.CompletedAt,
	}
}

func toQueueResponse(q *queue.Queue) QueueResponse {
	resp := QueueResponse{
		ID:             q.ID,
		ClinicID:       q.ClinicID,
		PractitionerID: q.PractitionerID,
		Specialty:      q.Specialty,
		ServiceDate:    q.ServiceDate.Format("2006-01-02"),
		AvgWaitMinutes: q.AvgWaitMinutes,
		Version:        q.Version,
		LastUpdated:    q.LastUpdated,
		Entries:        make([]QueueEntryResponse, 0, len(q.Entries)),
	}
	for _, e := range q.Entries {
		resp.Entries = append(resp.Entries, toQueueEntryResponse(e))
	}
	return resp
}

type WaitEstimateResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Minutes       int       `json:"minutes"`
	InQueue       bool      `json:"in_queue"`
}

type CallNextResponse struct {
	Empty bool                `json:"empty"`
	Entry *QueueEntryResponse `json:"entry,omitempty"`
}

type RoomResponse struct {
	ID                   uuid.UUID  `json:"id"`
	ClinicID             uuid.UUID  `json:"clinic_id"`
	Name                 string     `json:"name"`
	Status               string     `json:"status"`
	CurrentAppointmentID *uuid.UUID `json:"current_appointment_id,omitempty"`
	AssignedStaffID      *uuid.UUID `json:"assigned_staff_id,omitempty"`
}

func toRoomResponse(r *room.Room) RoomResponse {
	return RoomResponse{
		ID:                   r.ID,
		ClinicID:             r.ClinicID,
		Name:                 r.Name,
		Status:               string(r.Status),
		CurrentAppointmentID: r.CurrentAppointmentID,
		AssignedStaffID:      r.AssignedStaffID,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
