package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/availability"
)

// fakeRepo is an in-memory Repository with the same conflict and CAS
// semantics as the Postgres implementation.
type fakeRepo struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]*Patient
	practitioners map[uuid.UUID]*Practitioner
	windows       map[uuid.UUID][]availability.Window
	appts         map[uuid.UUID]*Appointment

	createErr error // forced Create failure
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:      make(map[uuid.UUID]*Patient),
		practitioners: make(map[uuid.UUID]*Practitioner),
		windows:       make(map[uuid.UUID][]availability.Window),
		appts:         make(map[uuid.UUID]*Appointment),
	}
}

func (r *fakeRepo) addPatient() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.patients[id] = &Patient{ID: id, Name: "Pat Doe"}
	return id
}

func (r *fakeRepo) addPractitioner(durationMins int, accepting bool) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.practitioners[id] = &Practitioner{
		ID:                     id,
		Name:                   "Dr. Roe",
		DefaultDurationMinutes: durationMins,
		AcceptingNewPatients:   accepting,
	}
	return id
}

func (r *fakeRepo) addAppointment(a Appointment) *Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := a
	r.appts[a.ID] = &cp
	return &cp
}

func (r *fakeRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) ListWindows(ctx context.Context, practitionerID uuid.UUID) ([]availability.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]availability.Window(nil), r.windows[practitionerID]...), nil
}

func (r *fakeRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) ListActiveStarts(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var starts []time.Time
	for _, a := range r.appts {
		if a.PractitionerID != practitionerID {
			continue
		}
		if a.Status == StatusCancelled || a.Status == StatusNoShow {
			continue
		}
		if a.Start.Before(from) || !a.Start.Before(to) {
			continue
		}
		starts = append(starts, a.Start)
	}
	return starts, nil
}

func (r *fakeRepo) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return nil, r.createErr
	}

	for _, existing := range r.appts {
		if existing.PractitionerID == a.PractitionerID &&
			existing.Start.Equal(a.Start) &&
			!existing.Status.Terminal() {
			return nil, ErrSlotConflict
		}
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	cp := a
	r.appts[a.ID] = &cp
	out := a
	return &out, nil
}

func (r *fakeRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time, opts TransitionOpts) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = at
	switch to {
	case StatusConfirmed:
		a.ConfirmedAt = &at
	case StatusInWaitingRoom:
		a.CheckedInAt = &at
	case StatusInProgress:
		a.StartedAt = &at
	case StatusCompleted:
		a.CompletedAt = &at
	case StatusCancelled:
		a.CancelledAt = &at
	}
	if opts.CancelReason != nil {
		a.CancelReason = opts.CancelReason
	}
	if opts.CancelledBy != nil {
		a.CancelledBy = opts.CancelledBy
	}

	cp := *a
	return &cp, nil
}

func (r *fakeRepo) BindRoom(ctx context.Context, id uuid.UUID, roomID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.RoomID = roomID
	return nil
}

func (r *fakeRepo) FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Appointment
	for _, a := range r.appts {
		if (a.Status == StatusScheduled || a.Status == StatusConfirmed) && a.Start.Before(cutoff) {
			result = append(result, *a)
		}
	}
	return result, nil
}

// fakeRooms records occupy/free calls and can be told to fail.
type fakeRooms struct {
	mu        sync.Mutex
	occupied  []uuid.UUID
	freed     []uuid.UUID
	occupyErr error
}

func (f *fakeRooms) Occupy(ctx context.Context, roomID, appointmentID uuid.UUID, staffID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.occupyErr != nil {
		return f.occupyErr
	}
	f.occupied = append(f.occupied, roomID)
	return nil
}

func (f *fakeRooms) Free(ctx context.Context, roomID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freed = append(f.freed, roomID)
	return nil
}

// fakeLocker runs the critical section inline, or refuses.
type fakeLocker struct {
	err error
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}
