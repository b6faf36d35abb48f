package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/appointment"
)

// fakeRepo is an in-memory Repository mirroring the Postgres semantics:
// dense 1-based positions, compaction on retirement, version bumps on every
// write.
type fakeRepo struct {
	mu     sync.Mutex
	queues map[uuid.UUID]*Queue

	applyErr error // forced ApplyOrder failure
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{queues: make(map[uuid.UUID]*Queue)}
}

func keyMatches(q *Queue, key QueueKey) bool {
	if q.ClinicID != key.ClinicID || !q.ServiceDate.Equal(key.ServiceDate) {
		return false
	}
	if (q.PractitionerID == nil) != (key.PractitionerID == nil) {
		return false
	}
	if q.PractitionerID != nil && *q.PractitionerID != *key.PractitionerID {
		return false
	}
	if (q.Specialty == nil) != (key.Specialty == nil) {
		return false
	}
	if q.Specialty != nil && *q.Specialty != *key.Specialty {
		return false
	}
	return true
}

func copyQueue(q *Queue) *Queue {
	cp := *q
	cp.Entries = append([]QueueEntry(nil), q.Entries...)
	return &cp
}

func (r *fakeRepo) GetOrCreate(ctx context.Context, key QueueKey, defaultWaitMins int) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queues {
		if keyMatches(q, key) {
			return copyQueue(q), nil
		}
	}
	q := &Queue{
		ID:             uuid.New(),
		ClinicID:       key.ClinicID,
		PractitionerID: key.PractitionerID,
		Specialty:      key.Specialty,
		ServiceDate:    key.ServiceDate,
		AvgWaitMinutes: float64(defaultWaitMins),
		Version:        1,
		LastUpdated:    time.Now(),
	}
	r.queues[q.ID] = q
	return copyQueue(q), nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[id]
	if !ok {
		return nil, ErrQueueNotFound
	}
	return copyQueue(q), nil
}

func (r *fakeRepo) FindByKey(ctx context.Context, key QueueKey) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queues {
		if keyMatches(q, key) {
			return copyQueue(q), nil
		}
	}
	return nil, ErrQueueNotFound
}

func (r *fakeRepo) FindActiveEntry(ctx context.Context, appointmentID uuid.UUID) (*QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queues {
		for i := range q.Entries {
			e := q.Entries[i]
			if e.AppointmentID == appointmentID && !e.Status.Terminal() {
				return &e, nil
			}
		}
	}
	return nil, ErrEntryNotFound
}

func (r *fakeRepo) AppendEntry(ctx context.Context, queueID, appointmentID uuid.UUID) (*QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[queueID]
	if !ok {
		return nil, ErrQueueNotFound
	}

	for _, other := range r.queues {
		for _, e := range other.Entries {
			if e.AppointmentID == appointmentID && !e.Status.Terminal() {
				return nil, ErrAlreadyQueued
			}
		}
	}

	maxPos := 0
	for _, e := range q.Entries {
		if e.Position > maxPos {
			maxPos = e.Position
		}
	}

	now := time.Now()
	entry := QueueEntry{
		ID:            uuid.New(),
		QueueID:       queueID,
		AppointmentID: appointmentID,
		Position:      maxPos + 1,
		Status:        EntryWaiting,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	q.Entries = append(q.Entries, entry)
	q.Version++
	q.LastUpdated = now
	return &entry, nil
}

func (r *fakeRepo) CallNext(ctx context.Context, queueID uuid.UUID) (*QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[queueID]
	if !ok {
		return nil, ErrQueueNotFound
	}

	var next *QueueEntry
	for i := range q.Entries {
		e := &q.Entries[i]
		if e.Status != EntryWaiting {
			continue
		}
		if next == nil || e.Position < next.Position {
			next = e
		}
	}
	if next == nil {
		return nil, ErrEmptyQueue
	}

	now := time.Now()
	next.Status = EntryCalled
	next.CalledAt = &now
	next.UpdatedAt = now
	q.Version++
	q.LastUpdated = now

	cp := *next
	return &cp, nil
}

func (r *fakeRepo) ApplyOrder(ctx context.Context, queueID uuid.UUID, expectedVersion int64, order []EntryPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applyErr != nil {
		return r.applyErr
	}

	q, ok := r.queues[queueID]
	if !ok {
		return ErrQueueNotFound
	}
	if q.Version != expectedVersion {
		return ErrQueueStale
	}

	for _, op := range order {
		found := false
		for i := range q.Entries {
			e := &q.Entries[i]
			if e.AppointmentID == op.AppointmentID && !e.Status.Terminal() {
				e.Position = op.Position
				found = true
				break
			}
		}
		if !found {
			return ErrEntryNotFound
		}
	}

	q.Version++
	q.LastUpdated = time.Now()
	return nil
}

func (r *fakeRepo) MarkStarted(ctx context.Context, queueID, appointmentID uuid.UUID, at time.Time) (*QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[queueID]
	if !ok {
		return nil, ErrQueueNotFound
	}
	for i := range q.Entries {
		e := &q.Entries[i]
		if e.AppointmentID == appointmentID && e.Status == EntryCalled {
			e.Status = EntryInProgress
			e.StartedAt = &at
			e.UpdatedAt = at
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (r *fakeRepo) CompleteEntry(ctx context.Context, queueID, appointmentID uuid.UUID, alpha float64) (*QueueEntry, error) {
	return r.retire(queueID, appointmentID, EntryCompleted, alpha)
}

func (r *fakeRepo) RetireNoShow(ctx context.Context, queueID, appointmentID uuid.UUID) (*QueueEntry, error) {
	return r.retire(queueID, appointmentID, EntryNoShow, 0)
}

func (r *fakeRepo) retire(queueID, appointmentID uuid.UUID, to EntryStatus, alpha float64) (*QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[queueID]
	if !ok {
		return nil, ErrQueueNotFound
	}

	var target *QueueEntry
	for i := range q.Entries {
		e := &q.Entries[i]
		if e.AppointmentID == appointmentID && !e.Status.Terminal() {
			target = e
			break
		}
	}
	if target == nil {
		return nil, ErrEntryNotFound
	}

	now := time.Now()
	oldPos := target.Position
	target.Status = to
	target.Position = 0
	target.UpdatedAt = now
	if to == EntryCompleted {
		target.CompletedAt = &now
	}

	for i := range q.Entries {
		e := &q.Entries[i]
		if e.Position > oldPos {
			e.Position--
		}
	}

	if to == EntryCompleted && target.CalledAt != nil && alpha > 0 {
		observed := now.Sub(*target.CalledAt).Minutes()
		q.AvgWaitMinutes = q.AvgWaitMinutes*(1-alpha) + observed*alpha
	}
	q.Version++
	q.LastUpdated = now

	cp := *target
	return &cp, nil
}

// fakeDirectory is an in-memory AppointmentDirectory backed by the real
// lifecycle rules.
type fakeDirectory struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*appointment.Appointment
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{appts: make(map[uuid.UUID]*appointment.Appointment)}
}

func (d *fakeDirectory) add(a appointment.Appointment) *appointment.Appointment {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := a
	d.appts[a.ID] = &cp
	return &cp
}

func (d *fakeDirectory) Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (d *fakeDirectory) CheckIn(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if err := appointment.CheckTransition(a.Status, appointment.StatusInWaitingRoom); err != nil {
		return nil, err
	}
	now := time.Now()
	a.Status = appointment.StatusInWaitingRoom
	a.CheckedInAt = &now
	cp := *a
	return &cp, nil
}

func (d *fakeDirectory) CreateWalkIn(ctx context.Context, clinicID, practitionerID, patientID uuid.UUID, reason string, priority appointment.Priority) (*appointment.Appointment, error) {
	if priority == "" {
		priority = appointment.PriorityNormal
	}
	now := time.Now()
	return d.add(appointment.Appointment{
		ClinicID:       clinicID,
		PractitionerID: practitionerID,
		PatientID:      patientID,
		Start:          now.Truncate(time.Minute),
		Status:         appointment.StatusConfirmed,
		Priority:       priority,
		Reason:         reason,
		ConfirmedAt:    &now,
	}), nil
}
