package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		wantErr bool
	}{
		{StatusBooked, StatusCheckedIn, false},
		{StatusBooked, StatusNoShow, false},
		{StatusAwaitingPayment, StatusCancelled, false},
		{StatusConfirmed, StatusCompleted, false},
		{StatusCheckedIn, StatusCompleted, false},
		{StatusNoShow, StatusCheckedIn, false},
		{StatusRescheduled, StatusCancelled, false},
		{StatusBooked, StatusConfirmed, true},
		{StatusBooked, StatusRescheduled, true},
		{StatusBooked, StatusBooked, true},
		{StatusCompleted, StatusCancelled, true},
		{StatusCancelled, StatusBooked, true},
		{StatusCancelled, StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCanReschedule(t *testing.T) {
	for _, s := range allStatuses {
		err := CanReschedule(s)
		if s.IsTerminal() {
			assert.ErrorIs(t, err, ErrAppointmentFinalized, s)
		} else {
			assert.NoError(t, err, s)
		}
	}
}

func TestCanConfirm(t *testing.T) {
	assert.NoError(t, CanConfirm(StatusBooked))
	assert.NoError(t, CanConfirm(StatusAwaitingPayment))
	assert.ErrorIs(t, CanConfirm(StatusConfirmed), ErrInvalidTransition)
	assert.ErrorIs(t, CanConfirm(StatusCancelled), ErrInvalidTransition)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("checkedin")
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedIn, s)

	_, err = ParseStatus("Lost")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestStatusFlags(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusRescheduled.IsTerminal())
	assert.False(t, StatusNoShow.IsTerminal())
	assert.True(t, StatusNoShow.IsActive())
	assert.False(t, StatusCancelled.IsActive())
}
