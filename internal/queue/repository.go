package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueNotFound = errors.New("queue not found")
	ErrEntryNotFound = errors.New("queue entry not found")
	ErrEmptyQueue    = errors.New("no waiting entries in queue")
	ErrAlreadyQueued = errors.New("appointment is already in an active queue")

	// ErrQueueStale means a concurrent writer changed the queue between the
	// caller's read and its write. Re-fetch the queue and retry.
	ErrQueueStale = errors.New("queue was modified concurrently")
)

// QueueKey identifies one queue: a clinic-day scoped to either a
// practitioner or a specialty.
type QueueKey struct {
	ClinicID       uuid.UUID
	PractitionerID *uuid.UUID
	Specialty      *string
	ServiceDate    time.Time
}

type Repository interface {
	// GetOrCreate resolves the queue for key, lazily creating it with the
	// given starting wait estimate.
	GetOrCreate(ctx context.Context, key QueueKey, defaultWaitMins int) (*Queue, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Queue, error)
	FindByKey(ctx context.Context, key QueueKey) (*Queue, error)

	// FindActiveEntry locates the appointment's waiting/called/in-progress
	// entry, in whichever queue it sits.
	FindActiveEntry(ctx context.Context, appointmentID uuid.UUID) (*QueueEntry, error)

	// AppendEntry adds the appointment at the tail (max position + 1).
	// An appointment may sit in at most one active queue; a second admit
	// fails with ErrAlreadyQueued.
	AppendEntry(ctx context.Context, queueID, appointmentID uuid.UUID) (*QueueEntry, error)

	// CallNext atomically selects the lowest-position waiting entry and
	// marks it called. Two concurrent calls can never pick the same entry.
	CallNext(ctx context.Context, queueID uuid.UUID) (*QueueEntry, error)

	// ApplyOrder writes a full position reassignment guarded by the queue
	// version; a stale version fails with ErrQueueStale.
	ApplyOrder(ctx context.Context, queueID uuid.UUID, expectedVersion int64, order []EntryPosition) error

	// MarkStarted flips a called entry to in-progress.
	MarkStarted(ctx context.Context, queueID, appointmentID uuid.UUID, at time.Time) (*QueueEntry, error)

	// CompleteEntry retires the entry as completed, compacts the positions
	// behind it and folds the observed called-to-completed duration into the
	// queue's rolling wait average with weight alpha.
	CompleteEntry(ctx context.Context, queueID, appointmentID uuid.UUID, alpha float64) (*QueueEntry, error)

	// RetireNoShow retires the entry as no-show and compacts positions.
	RetireNoShow(ctx context.Context, queueID, appointmentID uuid.UUID) (*QueueEntry, error)
}
