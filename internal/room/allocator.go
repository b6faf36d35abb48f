package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Allocator binds rooms to in-progress appointments. It satisfies the
// lifecycle's RoomBinder, so "start visit in room X" can occupy first and
// compensate with Free if the appointment transition fails.
type Allocator struct {
	repo Repository
}

func NewAllocator(repo Repository) *Allocator {
	return &Allocator{repo: repo}
}

func (a *Allocator) Get(ctx context.Context, id uuid.UUID) (*Room, error) {
	return a.repo.GetByID(ctx, id)
}

func (a *Allocator) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]Room, error) {
	return a.repo.ListByClinic(ctx, clinicID)
}

func (a *Allocator) Occupy(ctx context.Context, roomID, appointmentID uuid.UUID, staffID *uuid.UUID) error {
	room, err := a.repo.Occupy(ctx, roomID, appointmentID, staffID)
	if err != nil {
		return err
	}

	log.Info().
		Stringer("room_id", room.ID).
		Stringer("appointment_id", appointmentID).
		Msg("room occupied")
	return nil
}

func (a *Allocator) Free(ctx context.Context, roomID uuid.UUID) error {
	room, err := a.repo.Free(ctx, roomID)
	if err != nil {
		return err
	}

	log.Info().
		Stringer("room_id", room.ID).
		Msg("room freed")
	return nil
}
