package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clinicops/clinic-scheduling/internal/appointment"
	"github.com/clinicops/clinic-scheduling/internal/events"
)

var ErrInvalidOrder = errors.New("reorder payload is not a permutation of the active entries")

// waitDecayAlpha weights a freshly observed called-to-completed duration
// against the queue's rolling wait average.
const waitDecayAlpha = 0.2

// AppointmentDirectory is the slice of the appointment service the queue
// needs: resolving entries to appointments, checking patients in on
// admission, and minting same-day appointments for walk-ins.
type AppointmentDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	CheckIn(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	CreateWalkIn(ctx context.Context, clinicID, practitionerID, patientID uuid.UUID, reason string, priority appointment.Priority) (*appointment.Appointment, error)
}

// Manager owns the per clinic-day queues: admission, reordering, call-next
// and wait estimation. Queue entry statuses are kept in step with the
// underlying appointment's lifecycle.
type Manager struct {
	repo            Repository
	appts           AppointmentDirectory
	bus             *events.Bus
	defaultWaitMins int
}

func NewManager(repo Repository, appts AppointmentDirectory, bus *events.Bus, defaultWaitMins int) *Manager {
	return &Manager{
		repo:            repo,
		appts:           appts,
		bus:             bus,
		defaultWaitMins: defaultWaitMins,
	}
}

// Admit places an appointment at the tail of its clinic-day queue, creating
// the queue on first use. A confirmed appointment is checked in as part of
// admission.
func (m *Manager) Admit(ctx context.Context, appointmentID uuid.UUID) (*QueueEntry, error) {
	appt, err := m.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status.Terminal() {
		return nil, appointment.ErrAppointmentClosed
	}

	if appt.Status != appointment.StatusInWaitingRoom {
		// Admission doubles as check-in. Scheduled-but-unconfirmed
		// appointments fail here with the lifecycle's own error.
		if _, err := m.appts.CheckIn(ctx, appointmentID); err != nil {
			return nil, err
		}
	}

	key := QueueKey{
		ClinicID:       appt.ClinicID,
		PractitionerID: &appt.PractitionerID,
		ServiceDate:    dateOf(appt.Start),
	}
	q, err := m.repo.GetOrCreate(ctx, key, m.defaultWaitMins)
	if err != nil {
		return nil, err
	}

	entry, err := m.repo.AppendEntry(ctx, q.ID, appointmentID)
	if err != nil {
		return nil, err
	}

	m.emitPositions(ctx, q.ID)
	return entry, nil
}

// AdmitWalkIn creates a same-day appointment for an unbooked patient and
// admits it in one step.
func (m *Manager) AdmitWalkIn(ctx context.Context, clinicID, practitionerID, patientID uuid.UUID, reason string, priority appointment.Priority) (*QueueEntry, error) {
	appt, err := m.appts.CreateWalkIn(ctx, clinicID, practitionerID, patientID, reason, priority)
	if err != nil {
		return nil, err
	}
	return m.Admit(ctx, appt.ID)
}

// Reorder applies a full position reassignment. The payload must cover
// exactly the active entries and its positions must be a permutation of
// theirs; the write is guarded by the queue version read here, so a
// concurrent writer turns into ErrQueueStale rather than a silent overwrite.
func (m *Manager) Reorder(ctx context.Context, queueID uuid.UUID, order []EntryPosition) (*Queue, error) {
	q, err := m.repo.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}

	if err := validateOrder(q.ActiveEntries(), order); err != nil {
		return nil, err
	}

	if err := m.repo.ApplyOrder(ctx, queueID, q.Version, order); err != nil {
		return nil, err
	}

	fresh, err := m.repo.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}

	m.emitPositions(ctx, queueID)
	return fresh, nil
}

// CallNext calls the lowest-position waiting entry and checks the patient
// in if the front desk never did.
func (m *Manager) CallNext(ctx context.Context, queueID uuid.UUID) (*QueueEntry, error) {
	entry, err := m.repo.CallNext(ctx, queueID)
	if err != nil {
		return nil, err
	}

	appt, err := m.appts.Get(ctx, entry.AppointmentID)
	if err != nil {
		log.Error().Err(err).Stringer("appointment_id", entry.AppointmentID).Msg("load called appointment")
		return entry, nil
	}
	if appt.Status == appointment.StatusConfirmed {
		if _, err := m.appts.CheckIn(ctx, entry.AppointmentID); err != nil {
			log.Error().Err(err).Stringer("appointment_id", entry.AppointmentID).Msg("check in called appointment")
		}
	}

	return entry, nil
}

// EstimateWait predicts the wait for one queued appointment: patients ahead
// times the queue's rolling average. Appointments with no active entry get
// a zero estimate flagged as not-in-queue, never an error.
func (m *Manager) EstimateWait(ctx context.Context, appointmentID uuid.UUID) (WaitEstimate, error) {
	entry, err := m.repo.FindActiveEntry(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return WaitEstimate{}, nil
		}
		return WaitEstimate{}, err
	}

	q, err := m.repo.GetByID(ctx, entry.QueueID)
	if err != nil {
		return WaitEstimate{}, err
	}

	ahead := 0
	for _, e := range q.Entries {
		if e.Status == EntryWaiting && e.Position < entry.Position {
			ahead++
		}
	}

	return WaitEstimate{
		Minutes: int(math.Round(float64(ahead) * q.AvgWaitMinutes)),
		InQueue: true,
	}, nil
}

// Complete retires the appointment's entry and folds the observed
// consultation wait into the queue average.
func (m *Manager) Complete(ctx context.Context, queueID, appointmentID uuid.UUID) (*QueueEntry, error) {
	entry, err := m.repo.CompleteEntry(ctx, queueID, appointmentID, waitDecayAlpha)
	if err != nil {
		return nil, err
	}

	m.emitPositions(ctx, queueID)
	return entry, nil
}

// CompleteByAppointment retires the appointment's entry wherever it sits,
// used when a visit is completed through the appointment lifecycle rather
// than the queue endpoint. No active entry is not an error.
func (m *Manager) CompleteByAppointment(ctx context.Context, appointmentID uuid.UUID) {
	entry, err := m.repo.FindActiveEntry(ctx, appointmentID)
	if err != nil {
		if !errors.Is(err, ErrEntryNotFound) {
			log.Error().Err(err).Stringer("appointment_id", appointmentID).Msg("find queue entry")
		}
		return
	}

	if _, err := m.Complete(ctx, entry.QueueID, appointmentID); err != nil {
		log.Error().Err(err).Stringer("appointment_id", appointmentID).Msg("complete queue entry")
	}
}

// MarkInProgress syncs the entry when its appointment's visit starts.
// Best effort: appointments started outside a queue are not an error.
func (m *Manager) MarkInProgress(ctx context.Context, appointmentID uuid.UUID) {
	entry, err := m.repo.FindActiveEntry(ctx, appointmentID)
	if err != nil {
		if !errors.Is(err, ErrEntryNotFound) {
			log.Error().Err(err).Stringer("appointment_id", appointmentID).Msg("find queue entry")
		}
		return
	}

	if _, err := m.repo.MarkStarted(ctx, entry.QueueID, appointmentID, time.Now()); err != nil && !errors.Is(err, ErrEntryNotFound) {
		log.Error().Err(err).Stringer("appointment_id", appointmentID).Msg("mark queue entry started")
	}
}

// MarkNoShow retires the appointment's entry when the patient is written
// off. Best effort like MarkInProgress.
func (m *Manager) MarkNoShow(ctx context.Context, appointmentID uuid.UUID) {
	entry, err := m.repo.FindActiveEntry(ctx, appointmentID)
	if err != nil {
		if !errors.Is(err, ErrEntryNotFound) {
			log.Error().Err(err).Stringer("appointment_id", appointmentID).Msg("find queue entry")
		}
		return
	}

	if _, err := m.repo.RetireNoShow(ctx, entry.QueueID, appointmentID); err != nil && !errors.Is(err, ErrEntryNotFound) {
		log.Error().Err(err).Stringer("appointment_id", appointmentID).Msg("retire queue entry")
	} else {
		m.emitPositions(ctx, entry.QueueID)
	}
}

// Get resolves a queue by its key, for display boards.
func (m *Manager) Get(ctx context.Context, key QueueKey) (*Queue, error) {
	return m.repo.FindByKey(ctx, key)
}

func (m *Manager) GetByID(ctx context.Context, id uuid.UUID) (*Queue, error) {
	return m.repo.GetByID(ctx, id)
}

func (m *Manager) emitPositions(ctx context.Context, queueID uuid.UUID) {
	q, err := m.repo.GetByID(ctx, queueID)
	if err != nil {
		log.Error().Err(err).Stringer("queue_id", queueID).Msg("reload queue for event")
		return
	}

	entries := make([]map[string]any, 0, len(q.Entries))
	for _, e := range q.ActiveEntries() {
		entries = append(entries, map[string]any{
			"appointment_id": e.AppointmentID.String(),
			"position":       e.Position,
		})
	}

	m.bus.Emit(ctx, events.TypeQueuePositionsChanged, nil, map[string]any{
		"queue_id": queueID.String(),
		"entries":  entries,
	})
}

// validateOrder checks the payload covers exactly the active entries and
// permutes exactly their positions.
func validateOrder(active []QueueEntry, order []EntryPosition) error {
	if len(order) != len(active) {
		return fmt.Errorf("%w: got %d entries, queue has %d active", ErrInvalidOrder, len(order), len(active))
	}

	current := make(map[uuid.UUID]int, len(active))
	positions := make(map[int]int, len(active))
	for _, e := range active {
		current[e.AppointmentID] = e.Position
		positions[e.Position]++
	}

	seen := make(map[uuid.UUID]struct{}, len(order))
	for _, op := range order {
		if _, ok := current[op.AppointmentID]; !ok {
			return fmt.Errorf("%w: appointment %s is not an active entry", ErrInvalidOrder, op.AppointmentID)
		}
		if _, dup := seen[op.AppointmentID]; dup {
			return fmt.Errorf("%w: appointment %s listed twice", ErrInvalidOrder, op.AppointmentID)
		}
		seen[op.AppointmentID] = struct{}{}

		if positions[op.Position] == 0 {
			return fmt.Errorf("%w: position %d is not held by any active entry", ErrInvalidOrder, op.Position)
		}
		positions[op.Position]--
	}

	return nil
}

// dateOf truncates a timestamp to its calendar day.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
