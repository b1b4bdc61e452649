package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		trigger Trigger
		want    bool
	}{
		{StatusOpen, StatusMaking, TriggerStaff, true},
		{StatusMaking, StatusFulfilled, TriggerStaff, true},
		{StatusOpen, StatusFulfilled, TriggerStaff, false},
		{StatusMaking, StatusMaking, TriggerStaff, false},
		{StatusOpen, StatusCompleted, TriggerStaff, false},
		{StatusOpen, StatusCompleted, TriggerPaymentConfirmed, true},
		{StatusMaking, StatusCompleted, TriggerPaymentConfirmed, true},
		{StatusOpen, StatusMaking, TriggerPaymentConfirmed, false},
		{StatusOpen, StatusCancelled, TriggerPaymentFailed, true},
		{StatusMaking, StatusCancelled, TriggerPaymentFailed, true},
		{StatusOpen, StatusCancelled, TriggerStaff, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to)+"/"+string(tt.trigger), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to, tt.trigger))
		})
	}
}

func TestCheckTransition_TerminalStates(t *testing.T) {
	triggers := []Trigger{TriggerStaff, TriggerPaymentConfirmed, TriggerPaymentFailed}

	for _, from := range []Status{StatusCompleted, StatusFulfilled, StatusCancelled} {
		require.True(t, from.Terminal())
		for _, to := range Statuses {
			for _, trigger := range triggers {
				err := CheckTransition(from, to, trigger)

				var itErr *InvalidTransitionError
				require.ErrorAs(t, err, &itErr, "%s -> %s via %s", from, to, trigger)
				assert.Equal(t, from, itErr.From)
				assert.Equal(t, to, itErr.To)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("making")
	require.NoError(t, err)
	assert.Equal(t, StatusMaking, st)

	_, err = ParseStatus("MAKING")
	require.EqualError(t, err, `unknown order status "MAKING"`)
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{From: StatusOpen, To: StatusFulfilled}
	assert.Equal(t, "cannot move order from open to fulfilled", err.Error())
}
