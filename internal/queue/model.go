package queue

import (
	"time"

	"github.com/google/uuid"
)

type EntryStatus string

const (
	EntryWaiting    EntryStatus = "waiting"
	EntryCalled     EntryStatus = "called"
	EntryInProgress EntryStatus = "in-progress"
	EntryCompleted  EntryStatus = "completed"
	EntryNoShow     EntryStatus = "no-show"
)

// Terminal reports whether the entry has left the active queue.
func (s EntryStatus) Terminal() bool {
	return s == EntryCompleted || s == EntryNoShow
}

// QueueEntry is one line in a day's queue. Position is dense and 1-based
// among active entries; retired entries give their position up and the rest
// are compacted.
type QueueEntry struct {
	ID            uuid.UUID
	QueueID       uuid.UUID
	AppointmentID uuid.UUID
	Position      int // 0 once the entry is retired
	Status        EntryStatus
	CalledAt      *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Queue is the ordered walk-in/arrival list for one clinic-day, scoped to a
// practitioner or to a specialty. Version backs the optimistic concurrency
// guard on reorder.
type Queue struct {
	ID             uuid.UUID
	ClinicID       uuid.UUID
	PractitionerID *uuid.UUID
	Specialty      *string
	ServiceDate    time.Time
	AvgWaitMinutes float64
	Version        int64
	LastUpdated    time.Time
	Entries        []QueueEntry
}

// ActiveEntries returns the waiting/called/in-progress entries in position
// order.
func (q *Queue) ActiveEntries() []QueueEntry {
	var active []QueueEntry
	for _, e := range q.Entries {
		if !e.Status.Terminal() {
			active = append(active, e)
		}
	}
	return active
}

// EntryPosition is one element of a reorder payload.
type EntryPosition struct {
	AppointmentID uuid.UUID
	Position      int
}

// WaitEstimate is the predicted wait for one queued appointment. InQueue is
// false when the appointment has no active entry; Minutes is then zero.
type WaitEstimate struct {
	Minutes int
	InQueue bool
}
