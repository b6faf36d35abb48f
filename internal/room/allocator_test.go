package room

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*Room
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[uuid.UUID]*Room)}
}

func (r *fakeRoomRepo) add(clinicID uuid.UUID, status RoomStatus) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.rooms[id] = &Room{ID: id, ClinicID: clinicID, Name: "Room 101", Status: status}
	return id
}

func (r *fakeRoomRepo) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *fakeRoomRepo) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Room
	for _, room := range r.rooms {
		if room.ClinicID == clinicID {
			result = append(result, *room)
		}
	}
	return result, nil
}

func (r *fakeRoomRepo) Occupy(ctx context.Context, roomID, appointmentID uuid.UUID, staffID *uuid.UUID) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Status != StatusAvailable {
		return nil, ErrRoomUnavailable
	}
	room.Status = StatusOccupied
	room.CurrentAppointmentID = &appointmentID
	if staffID != nil {
		room.AssignedStaffID = staffID
	}
	cp := *room
	return &cp, nil
}

func (r *fakeRoomRepo) Free(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Status != StatusOccupied {
		return nil, ErrRoomNotOccupied
	}
	room.Status = StatusAvailable
	room.CurrentAppointmentID = nil
	cp := *room
	return &cp, nil
}

func TestAllocatorOccupyAndFree(t *testing.T) {
	repo := newFakeRoomRepo()
	clinicID := uuid.New()
	roomID := repo.add(clinicID, StatusAvailable)
	alloc := NewAllocator(repo)

	appointmentID := uuid.New()
	require.NoError(t, alloc.Occupy(context.Background(), roomID, appointmentID, nil))

	room, err := alloc.Get(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, StatusOccupied, room.Status)
	require.NotNil(t, room.CurrentAppointmentID)
	assert.Equal(t, appointmentID, *room.CurrentAppointmentID)

	require.NoError(t, alloc.Free(context.Background(), roomID))

	room, err = alloc.Get(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, room.Status)
	assert.Nil(t, room.CurrentAppointmentID)
}

func TestAllocatorOccupyTakenRoom(t *testing.T) {
	repo := newFakeRoomRepo()
	roomID := repo.add(uuid.New(), StatusOccupied)
	alloc := NewAllocator(repo)

	err := alloc.Occupy(context.Background(), roomID, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrRoomUnavailable)
}

func TestAllocatorOccupyRoomInCleaning(t *testing.T) {
	repo := newFakeRoomRepo()
	roomID := repo.add(uuid.New(), StatusCleaning)
	alloc := NewAllocator(repo)

	err := alloc.Occupy(context.Background(), roomID, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrRoomUnavailable)
}

func TestAllocatorFreeIdleRoom(t *testing.T) {
	repo := newFakeRoomRepo()
	roomID := repo.add(uuid.New(), StatusAvailable)
	alloc := NewAllocator(repo)

	err := alloc.Free(context.Background(), roomID)
	assert.ErrorIs(t, err, ErrRoomNotOccupied)
}

func TestAllocatorUnknownRoom(t *testing.T) {
	alloc := NewAllocator(newFakeRoomRepo())

	err := alloc.Occupy(context.Background(), uuid.New(), uuid.New(), nil)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = alloc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
