package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/models"
)

func TestPropertyTransitions(t *testing.T) {
	cases := []struct {
		name  string
		from  models.PropertyStatus
		event PropertyEvent
		to    models.PropertyStatus
		ok    bool
	}{
		{"checkin", models.PropertyAvailable, PropertyCheckin, models.PropertyOccupied, true},
		{"checkout", models.PropertyOccupied, PropertyCheckout, models.PropertyPendingCleaning, true},
		{"early checkout", models.PropertyOccupied, PropertyEarlyCheckout, models.PropertyPendingCleaning, true},
		{"vacated", models.PropertyOccupied, PropertyVacated, models.PropertyAvailable, true},
		{"cleaned", models.PropertyPendingCleaning, PropertyCleaned, models.PropertyAvailable, true},
		{"midnight sweep", models.PropertyPendingCleaning, PropertyMidnightSweep, models.PropertyAvailable, true},
		{"block available", models.PropertyAvailable, PropertyBlock, models.PropertyMaintenance, true},
		{"block pending cleaning", models.PropertyPendingCleaning, PropertyBlock, models.PropertyMaintenance, true},
		{"unblock", models.PropertyMaintenance, PropertyUnblock, models.PropertyAvailable, true},
		{"block occupied rejected", models.PropertyOccupied, PropertyBlock, "", false},
		{"checkin occupied rejected", models.PropertyOccupied, PropertyCheckin, "", false},
		{"clean available rejected", models.PropertyAvailable, PropertyCleaned, "", false},
		{"checkout maintenance rejected", models.PropertyMaintenance, PropertyCheckout, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := TransitionProperty(tc.from, tc.event)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, next)
				return
			}
			assert.True(t, failure.IsInvalidTransition(err))
			// A rejected event leaves the status unchanged.
			assert.Equal(t, tc.from, next)
		})
	}
}

func TestBookingTransitions(t *testing.T) {
	cases := []struct {
		name  string
		from  models.BookingStatus
		event BookingEvent
		to    models.BookingStatus
		ok    bool
	}{
		{"checkout", models.BookingActive, BookingCheckout, models.BookingDeparted, true},
		{"cancel active", models.BookingActive, BookingCancel, models.BookingCancelled, true},
		{"conflict raised", models.BookingActive, BookingConflictRaised, models.BookingPendingRelocation, true},
		{"resolved", models.BookingPendingRelocation, BookingResolved, models.BookingActive, true},
		{"cancel pending", models.BookingPendingRelocation, BookingCancel, models.BookingCancelled, true},
		{"cancel departed rejected", models.BookingDeparted, BookingCancel, "", false},
		{"cancel cancelled rejected", models.BookingCancelled, BookingCancel, "", false},
		{"checkout pending rejected", models.BookingPendingRelocation, BookingCheckout, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := TransitionBooking(tc.from, tc.event)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, next)
				return
			}
			assert.True(t, failure.IsInvalidTransition(err))
		})
	}
}

// The status of a property is a fold of its event history: replaying a
// legal event sequence from AVAILABLE lands on exactly one status.
func TestPropertyEventFold(t *testing.T) {
	events := []PropertyEvent{
		PropertyCheckin,
		PropertyCheckout,
		PropertyMidnightSweep,
		PropertyBlock,
		PropertyUnblock,
		PropertyCheckin,
		PropertyEarlyCheckout,
		PropertyCleaned,
	}

	status := models.PropertyAvailable
	for _, event := range events {
		next, err := TransitionProperty(status, event)
		require.NoError(t, err, "event %s from %s", event, status)
		status = next
	}
	assert.Equal(t, models.PropertyAvailable, status)
}

func TestOccupies(t *testing.T) {
	assert.True(t, Occupies(models.BookingActive))
	assert.False(t, Occupies(models.BookingPendingRelocation))
	assert.False(t, Occupies(models.BookingDeparted))
	assert.False(t, Occupies(models.BookingCancelled))
}
