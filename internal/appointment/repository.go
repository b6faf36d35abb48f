package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/availability"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrSlotConflict is raised by the storage layer when an insert loses the
	// booking race: another non-terminal appointment already holds the same
	// (practitioner, start) pair. Callers are expected to re-fetch slots and
	// retry with a different time.
	ErrSlotConflict = errors.New("slot already booked")
)

// TransitionOpts carries the optional fields some transitions stamp.
type TransitionOpts struct {
	CancelReason *string
	CancelledBy  *string
}

// Repository contains all DB interactions needed by the booking and
// lifecycle services.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)

	// ListWindows returns the practitioner's full weekly availability template.
	ListWindows(ctx context.Context, practitionerID uuid.UUID) ([]availability.Window, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListActiveStarts returns start timestamps of non-cancelled, non-no-show
	// appointments for the practitioner within [from, to). Used to flag
	// computed slots as taken.
	ListActiveStarts(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]time.Time, error)

	// Create inserts the appointment with the status it carries. The partial
	// unique index on (practitioner_id, start_time) over non-terminal rows
	// makes the conflict check and the write one atomic operation; a unique
	// violation is surfaced as ErrSlotConflict.
	Create(ctx context.Context, a Appointment) (*Appointment, error)

	// TransitionStatus is a compare-and-swap on the status column. It stamps
	// the audit timestamp matching the target status and returns
	// ErrAppointmentNotFound when no row matched (missing or already moved).
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time, opts TransitionOpts) (*Appointment, error)

	// BindRoom records which room an in-progress appointment occupies; nil
	// clears the binding.
	BindRoom(ctx context.Context, id uuid.UUID, roomID *uuid.UUID) error

	// FindOverdue lists scheduled/confirmed appointments whose start is
	// before cutoff, for the no-show sweep.
	FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error)
}
