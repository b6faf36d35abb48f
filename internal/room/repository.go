package room

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomUnavailable means occupy hit a room that is not in available
	// state. Occupying an already-occupied room fails deliberately instead
	// of no-opping, so double allocation surfaces at the first bad call.
	ErrRoomUnavailable = errors.New("room is not available")

	// ErrRoomNotOccupied means free hit a room with no current appointment.
	ErrRoomNotOccupied = errors.New("room is not occupied")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Room, error)
	ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]Room, error)

	// Occupy conditionally flips available -> occupied and binds the
	// appointment; the condition makes concurrent occupies of one room
	// race-safe, the loser gets ErrRoomUnavailable.
	Occupy(ctx context.Context, roomID, appointmentID uuid.UUID, staffID *uuid.UUID) (*Room, error)

	// Free conditionally flips occupied -> available and clears the current
	// appointment. AssignedStaffID is retained as history.
	Free(ctx context.Context, roomID uuid.UUID) (*Room, error)
}
