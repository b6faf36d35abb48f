package room

import (
	"time"

	"github.com/google/uuid"
)

type RoomStatus string

const (
	StatusAvailable   RoomStatus = "available"
	StatusOccupied    RoomStatus = "occupied"
	StatusMaintenance RoomStatus = "maintenance"
	StatusReserved    RoomStatus = "reserved"
	StatusCleaning    RoomStatus = "cleaning"
)

// Room is a physical consultation room. status = occupied iff
// CurrentAppointmentID is set; AssignedStaffID survives a free as history.
type Room struct {
	ID                   uuid.UUID
	ClinicID             uuid.UUID
	Name                 string
	Status               RoomStatus
	CurrentAppointmentID *uuid.UUID
	AssignedStaffID      *uuid.UUID
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
