package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Window is one recurring weekly availability block for a practitioner,
// e.g. Mondays 09:00-12:30 at a given clinic. Windows are owned by
// practitioner profile management; this package only reads them.
type Window struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	ClinicID       uuid.UUID
	Weekday        time.Weekday
	StartClock     string // "15:04"
	EndClock       string // "15:04"
}

// parseClock anchors a "15:04" clock string onto the given date, in the
// date's location.
func parseClock(clock string, date time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), 0, 0,
		date.Location(),
	), nil
}
