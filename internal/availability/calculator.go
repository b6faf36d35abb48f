package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot is a computed candidate appointment start. Slots are never persisted;
// they are regenerated on every query.
type Slot struct {
	Start     time.Time
	ClinicID  uuid.UUID
	Available bool
}

// DaySchedule is the result of computing one practitioner-day. Open
// distinguishes "the practitioner does not work this weekday" from "every
// slot is taken": a fully booked day is still Open.
type DaySchedule struct {
	Slots []Slot
	Open  bool
}

// ComputeSlots expands the practitioner's weekly windows onto date and marks
// each slot unavailable when its start exactly matches an active booking.
// bookedStarts must already be filtered to non-terminal appointments for the
// practitioner on that day. Pure and safe for concurrent use.
func ComputeSlots(windows []Window, bookedStarts []time.Time, date time.Time, duration time.Duration) (DaySchedule, error) {
	if duration <= 0 {
		return DaySchedule{}, fmt.Errorf("slot duration must be positive, got %s", duration)
	}

	booked := make(map[int64]struct{}, len(bookedStarts))
	for _, t := range bookedStarts {
		booked[t.Unix()] = struct{}{}
	}

	sched := DaySchedule{}

	for _, w := range windows {
		if w.Weekday != date.Weekday() {
			continue
		}
		sched.Open = true

		start, err := parseClock(w.StartClock, date)
		if err != nil {
			return DaySchedule{}, err
		}
		end, err := parseClock(w.EndClock, date)
		if err != nil {
			return DaySchedule{}, err
		}

		// Emit slots every duration; the trailing partial slot that would
		// cross the window boundary is dropped.
		for cur := start; !cur.Add(duration).After(end); cur = cur.Add(duration) {
			_, taken := booked[cur.Unix()]
			sched.Slots = append(sched.Slots, Slot{
				Start:     cur,
				ClinicID:  w.ClinicID,
				Available: !taken,
			})
		}
	}

	return sched, nil
}
