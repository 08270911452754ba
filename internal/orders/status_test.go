package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"PENDING", "PAID", "PROCESSING", "SHIPPED", "DELIVERED", "CANCELLED"} {
		st, ok := ParseStatus(s)
		assert.True(t, ok, s)
		assert.Equal(t, Status(s), st)
	}
	_, ok := ParseStatus("REFUNDED")
	assert.False(t, ok)
	_, ok = ParseStatus("pending")
	assert.False(t, ok)
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestCanTransition_Permissive(t *testing.T) {
	// baseline behavior: any known, different status is reachable
	assert.True(t, CanTransition(StatusDelivered, StatusPending, false))
	assert.True(t, CanTransition(StatusPending, StatusDelivered, false))
	assert.True(t, CanTransition(StatusCancelled, StatusPaid, false))

	assert.False(t, CanTransition(StatusPending, StatusPending, false))
	assert.False(t, CanTransition(StatusPending, "REFUNDED", false))
	assert.False(t, CanTransition("BOGUS", StatusPaid, false))
}

func TestCanTransition_Strict(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPaid, StatusProcessing, true},
		{StatusPaid, StatusCancelled, true},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusDelivered, true},

		{StatusDelivered, StatusPending, false},
		{StatusShipped, StatusCancelled, false},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusCancelled, StatusPending, false},
		{StatusDelivered, StatusCancelled, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, CanTransition(c.from, c.to, true), "%s -> %s", c.from, c.to)
	}
}
