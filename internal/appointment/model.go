package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled     Status = "scheduled"
	StatusConfirmed     Status = "confirmed"
	StatusInWaitingRoom Status = "in-waiting-room"
	StatusInProgress    Status = "in-progress"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusNoShow        Status = "no-show"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type Modality string

const (
	ModalityInPerson Modality = "in-person"
	ModalityRemote   Modality = "remote"
)

type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

type Appointment struct {
	ID              uuid.UUID
	ClinicID        uuid.UUID
	PractitionerID  uuid.UUID
	PatientID       uuid.UUID
	Start           time.Time
	DurationMinutes int
	Modality        Modality
	Priority        Priority
	Status          Status
	Reason          string
	RoomID          *uuid.UUID

	ConfirmedAt  *time.Time
	CheckedInAt  *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
	CancelledBy  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID                     uuid.UUID
	Name                   string
	Specialty              *string
	DefaultDurationMinutes int
	AcceptingNewPatients   bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
