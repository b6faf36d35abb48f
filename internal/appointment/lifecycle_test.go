package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr error
	}{
		{"scheduled to confirmed", StatusScheduled, StatusConfirmed, nil},
		{"scheduled to cancelled", StatusScheduled, StatusCancelled, nil},
		{"scheduled to no-show", StatusScheduled, StatusNoShow, nil},
		{"confirmed to waiting room", StatusConfirmed, StatusInWaitingRoom, nil},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, nil},
		{"confirmed to no-show", StatusConfirmed, StatusNoShow, nil},
		{"waiting room to in-progress", StatusInWaitingRoom, StatusInProgress, nil},
		{"waiting room to no-show", StatusInWaitingRoom, StatusNoShow, nil},
		{"in-progress to completed", StatusInProgress, StatusCompleted, nil},

		{"scheduled skips to waiting room", StatusScheduled, StatusInWaitingRoom, ErrInvalidTransition},
		{"scheduled skips to in-progress", StatusScheduled, StatusInProgress, ErrInvalidTransition},
		{"confirmed skips to completed", StatusConfirmed, StatusCompleted, ErrInvalidTransition},
		{"waiting room back to confirmed", StatusInWaitingRoom, StatusConfirmed, ErrInvalidTransition},
		{"in-progress to cancelled", StatusInProgress, StatusCancelled, ErrInvalidTransition},
		{"in-progress to no-show", StatusInProgress, StatusNoShow, ErrInvalidTransition},

		{"completed is closed", StatusCompleted, StatusCancelled, ErrAppointmentClosed},
		{"cancelled is closed", StatusCancelled, StatusConfirmed, ErrAppointmentClosed},
		{"no-show is closed", StatusNoShow, StatusScheduled, ErrAppointmentClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusNoShow.Terminal())

	assert.False(t, StatusScheduled.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.False(t, StatusInWaitingRoom.Terminal())
	assert.False(t, StatusInProgress.Terminal())
}
