package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clinicops/clinic-scheduling/internal/events"
)

var ErrCancelReasonRequired = errors.New("cancellation reason is required")

// RoomBinder is the slice of the room allocator the lifecycle needs when a
// visit starts or ends in a physical room.
type RoomBinder interface {
	Occupy(ctx context.Context, roomID, appointmentID uuid.UUID, staffID *uuid.UUID) error
	Free(ctx context.Context, roomID uuid.UUID) error
}

// Service drives the appointment state machine. Every mutation goes through
// a compare-and-swap transition so concurrent staff actions cannot produce
// an illegal state, and every successful transition emits a status event.
type Service struct {
	repo  Repository
	rooms RoomBinder
	bus   *events.Bus
}

func NewService(repo Repository, rooms RoomBinder, bus *events.Bus) *Service {
	return &Service{
		repo:  repo,
		rooms: rooms,
		bus:   bus,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Confirm moves a scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, TransitionOpts{})
}

// Cancel closes a scheduled or confirmed appointment. The reason is
// mandatory; it feeds billing and audit collaborators.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason, cancelledBy string) (*Appointment, error) {
	if reason == "" {
		return nil, ErrCancelReasonRequired
	}
	opts := TransitionOpts{CancelReason: &reason}
	if cancelledBy != "" {
		opts.CancelledBy = &cancelledBy
	}
	return s.transition(ctx, id, StatusCancelled, opts)
}

// CheckIn moves a confirmed appointment to in-waiting-room. Queue admission
// and front-desk check-in both land here.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusInWaitingRoom, TransitionOpts{})
}

// Start moves a checked-in appointment to in-progress. When roomID is given
// the room is occupied first and freed again if the transition fails, so a
// failed start never leaves a room bound to a visit that did not happen.
func (s *Service) Start(ctx context.Context, id uuid.UUID, roomID *uuid.UUID, staffID *uuid.UUID) (*Appointment, error) {
	if roomID != nil {
		if err := s.rooms.Occupy(ctx, *roomID, id, staffID); err != nil {
			return nil, err
		}
	}

	updated, err := s.transition(ctx, id, StatusInProgress, TransitionOpts{})
	if err != nil {
		if roomID != nil {
			if ferr := s.rooms.Free(ctx, *roomID); ferr != nil {
				log.Error().Err(ferr).Stringer("room_id", *roomID).Msg("free room after failed start")
			}
		}
		return nil, err
	}

	if roomID != nil {
		if err := s.repo.BindRoom(ctx, id, roomID); err != nil {
			log.Error().Err(err).Stringer("appointment_id", id).Msg("bind room to appointment")
		} else {
			updated.RoomID = roomID
		}
	}

	return updated, nil
}

// Complete closes an in-progress appointment and releases its room.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.transition(ctx, id, StatusCompleted, TransitionOpts{})
	if err != nil {
		return nil, err
	}

	if updated.RoomID != nil {
		if err := s.rooms.Free(ctx, *updated.RoomID); err != nil {
			log.Error().Err(err).Stringer("room_id", *updated.RoomID).Msg("free room on completion")
		}
		if err := s.repo.BindRoom(ctx, id, nil); err != nil {
			log.Error().Err(err).Stringer("appointment_id", id).Msg("clear room binding")
		}
	}

	return updated, nil
}

// MarkNoShow closes an appointment the patient never showed up for.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, TransitionOpts{})
}

// CreateWalkIn creates a same-day appointment for a patient who arrived
// without a booking. It is born confirmed so queue admission can check it
// in immediately; the slot-availability validation is deliberately skipped.
func (s *Service) CreateWalkIn(ctx context.Context, clinicID, practitionerID, patientID uuid.UUID, reason string, priority Priority) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	pract, err := s.repo.GetPractitionerByID(ctx, practitionerID)
	if err != nil {
		return nil, err
	}

	if priority == "" {
		priority = PriorityNormal
	}

	now := time.Now()
	appt := Appointment{
		ClinicID:        clinicID,
		PractitionerID:  practitionerID,
		PatientID:       patientID,
		Start:           now.Truncate(time.Minute),
		DurationMinutes: pract.DefaultDurationMinutes,
		Modality:        ModalityInPerson,
		Priority:        priority,
		Status:          StatusConfirmed,
		Reason:          reason,
		ConfirmedAt:     &now,
	}

	created, err := s.repo.Create(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("create walk-in appointment: %w", err)
	}

	s.bus.Emit(ctx, events.TypeAppointmentCreated, &created.ID, map[string]any{
		"patient_id":      created.PatientID.String(),
		"practitioner_id": created.PractitionerID.String(),
		"start":           created.Start,
		"walk_in":         true,
	})

	return created, nil
}

// SweepNoShows marks every scheduled/confirmed appointment whose start is
// more than grace in the past as no-show. Called by the worker, not the
// request path.
func (s *Service) SweepNoShows(ctx context.Context, grace time.Duration) (int, error) {
	overdue, err := s.repo.FindOverdue(ctx, time.Now().Add(-grace))
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	swept := 0
	for _, appt := range overdue {
		if _, err := s.transition(ctx, appt.ID, StatusNoShow, TransitionOpts{}); err != nil {
			// Someone checked the patient in or cancelled since we read;
			// nothing to do for this one.
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrAppointmentClosed) {
				continue
			}
			log.Error().Err(err).Stringer("appointment_id", appt.ID).Msg("mark no-show")
			continue
		}
		swept++
	}

	return swept, nil
}

// transition validates against the state machine, then applies the change as
// a conditional update keyed on the status we read. When the CAS misses we
// re-read and report the error the fresh state deserves.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, opts TransitionOpts) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := CheckTransition(appt.Status, to); err != nil {
		return nil, err
	}

	now := time.Now()
	updated, err := s.repo.TransitionStatus(ctx, id, appt.Status, to, now, opts)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			fresh, ferr := s.repo.GetAppointmentByID(ctx, id)
			if ferr != nil {
				return nil, ferr
			}
			if cerr := CheckTransition(fresh.Status, to); cerr != nil {
				return nil, cerr
			}
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("transition appointment: %w", err)
	}

	s.bus.Emit(ctx, events.TypeAppointmentStatusChanged, &updated.ID, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
		"at":   now,
	})

	return updated, nil
}
