package appointment

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid appointment status transition")
	ErrAppointmentClosed = errors.New("appointment is in a terminal state")
)

// transitions is the full state machine. Terminal states have no entries:
// once an appointment is completed, cancelled or no-show it is immutable.
var transitions = map[Status][]Status{
	StatusScheduled:     {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:     {StatusInWaitingRoom, StatusCancelled, StatusNoShow},
	StatusInWaitingRoom: {StatusInProgress, StatusNoShow},
	StatusInProgress:    {StatusCompleted},
}

// CheckTransition validates from -> to against the state machine. Mutations
// of terminal appointments report ErrAppointmentClosed so callers can tell
// "this visit is over" apart from an out-of-order request.
func CheckTransition(from, to Status) error {
	if from.Terminal() {
		return ErrAppointmentClosed
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return ErrInvalidTransition
}
