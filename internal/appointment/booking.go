package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/availability"
	"github.com/clinicops/clinic-scheduling/internal/events"
	redisclient "github.com/clinicops/clinic-scheduling/internal/redis"
)

var (
	ErrSlotUnavailable      = errors.New("requested time is not bookable")
	ErrNotAcceptingPatients = errors.New("practitioner is not accepting new patients")
)

type BookingRequest struct {
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	ClinicID       uuid.UUID
	Start          time.Time
	Reason         string
	Modality       Modality
	Priority       Priority
}

// BookingService turns a requested time into a scheduled appointment. The
// availability check is advisory; the real no-double-booking guarantee is
// the storage layer's partial unique index, surfaced as ErrSlotConflict.
// The per-slot Redis lock only keeps concurrent requests for the same slot
// from hammering the database with doomed inserts.
type BookingService struct {
	repo   Repository
	locker redisclient.Locker
	bus    *events.Bus
}

func NewBookingService(repo Repository, locker redisclient.Locker, bus *events.Bus) *BookingService {
	return &BookingService{
		repo:   repo,
		locker: locker,
		bus:    bus,
	}
}

// Slots computes the practitioner's bookable slots for one day.
func (s *BookingService) Slots(ctx context.Context, practitionerID uuid.UUID, date time.Time) (availability.DaySchedule, error) {
	pract, err := s.repo.GetPractitionerByID(ctx, practitionerID)
	if err != nil {
		return availability.DaySchedule{}, err
	}

	windows, err := s.repo.ListWindows(ctx, practitionerID)
	if err != nil {
		return availability.DaySchedule{}, fmt.Errorf("list availability windows: %w", err)
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	booked, err := s.repo.ListActiveStarts(ctx, practitionerID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return availability.DaySchedule{}, fmt.Errorf("list booked starts: %w", err)
	}

	duration := time.Duration(pract.DefaultDurationMinutes) * time.Minute
	return availability.ComputeSlots(windows, booked, date, duration)
}

// Book validates the requested start against the computed schedule and
// creates the appointment in scheduled state.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if !req.Start.After(time.Now()) {
		return nil, fmt.Errorf("%w: start must be in the future", ErrSlotUnavailable)
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, err
	}

	pract, err := s.repo.GetPractitionerByID(ctx, req.PractitionerID)
	if err != nil {
		return nil, err
	}
	if !pract.AcceptingNewPatients {
		return nil, ErrNotAcceptingPatients
	}

	sched, err := s.Slots(ctx, req.PractitionerID, req.Start)
	if err != nil {
		return nil, err
	}
	if !sched.Open {
		return nil, fmt.Errorf("%w: practitioner has no availability that day", ErrSlotUnavailable)
	}

	var match *availability.Slot
	for i := range sched.Slots {
		if sched.Slots[i].Start.Equal(req.Start) && sched.Slots[i].ClinicID == req.ClinicID {
			match = &sched.Slots[i]
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: start does not fall on a slot boundary", ErrSlotUnavailable)
	}
	if !match.Available {
		return nil, fmt.Errorf("%w: slot is already taken", ErrSlotUnavailable)
	}

	if req.Modality == "" {
		req.Modality = ModalityInPerson
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}

	var created *Appointment
	lockKey := fmt.Sprintf("slot:%s:%d", req.PractitionerID, req.Start.Unix())

	err = s.locker.WithLock(ctx, lockKey, func(lockCtx context.Context) error {
		appt := Appointment{
			ClinicID:        req.ClinicID,
			PractitionerID:  req.PractitionerID,
			PatientID:       req.PatientID,
			Start:           req.Start,
			DurationMinutes: pract.DefaultDurationMinutes,
			Modality:        req.Modality,
			Priority:        req.Priority,
			Status:          StatusScheduled,
			Reason:          req.Reason,
		}

		inserted, err := s.repo.Create(lockCtx, appt)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		// A held lock means another request is committing this exact slot
		// right now; from the caller's view that is the same lost race.
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotConflict
		}
		if errors.Is(err, ErrSlotConflict) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.bus.Emit(ctx, events.TypeAppointmentCreated, &created.ID, map[string]any{
		"patient_id":      created.PatientID.String(),
		"practitioner_id": created.PractitionerID.String(),
		"start":           created.Start,
	})

	return created, nil
}
