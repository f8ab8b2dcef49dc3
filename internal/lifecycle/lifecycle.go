// Package lifecycle validates state transitions for properties and bookings.
// Transition tables are exhaustive; anything not listed is illegal. Callers
// apply the returned state inside a single store transaction so an illegal
// event leaves the entity untouched.
package lifecycle

import (
	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/models"
)

// PropertyEvent is an occupancy event applied to a property.
type PropertyEvent string

const (
	PropertyCheckin       PropertyEvent = "checkin"
	PropertyCheckout      PropertyEvent = "checkout"
	PropertyEarlyCheckout PropertyEvent = "early-checkout"
	PropertyCleaned       PropertyEvent = "cleaned"
	PropertyMidnightSweep PropertyEvent = "midnight-sweep"
	PropertyBlock         PropertyEvent = "block"
	PropertyUnblock       PropertyEvent = "unblock"
	// PropertyVacated fires when the occupying booking is cancelled. The
	// stay never happened, so no cleaning cycle is owed.
	PropertyVacated PropertyEvent = "vacated"
)

// BookingEvent is a lifecycle event applied to a booking.
type BookingEvent string

const (
	BookingCheckout       BookingEvent = "checkout"
	BookingCancel         BookingEvent = "cancel"
	BookingConflictRaised BookingEvent = "conflict-raised"
	BookingResolved       BookingEvent = "resolved-to-property"
)

// Blocking an OCCUPIED property is rejected: a guest is present. Kept out of
// the table rather than special-cased so the rule reads from one place.
var propertyTransitions = map[models.PropertyStatus]map[PropertyEvent]models.PropertyStatus{
	models.PropertyAvailable: {
		PropertyCheckin: models.PropertyOccupied,
		PropertyBlock:   models.PropertyMaintenance,
	},
	models.PropertyOccupied: {
		PropertyCheckout:      models.PropertyPendingCleaning,
		PropertyEarlyCheckout: models.PropertyPendingCleaning,
		PropertyVacated:       models.PropertyAvailable,
	},
	models.PropertyPendingCleaning: {
		PropertyCleaned:       models.PropertyAvailable,
		PropertyMidnightSweep: models.PropertyAvailable,
		PropertyBlock:         models.PropertyMaintenance,
	},
	models.PropertyMaintenance: {
		PropertyUnblock: models.PropertyAvailable,
	},
}

var bookingTransitions = map[models.BookingStatus]map[BookingEvent]models.BookingStatus{
	models.BookingActive: {
		BookingCheckout:       models.BookingDeparted,
		BookingCancel:         models.BookingCancelled,
		BookingConflictRaised: models.BookingPendingRelocation,
	},
	models.BookingPendingRelocation: {
		BookingResolved: models.BookingActive,
		BookingCancel:   models.BookingCancelled,
	},
}

// TransitionProperty returns the property status that follows event, or an
// InvalidTransition failure when the event is not legal from current.
func TransitionProperty(current models.PropertyStatus, event PropertyEvent) (models.PropertyStatus, error) {
	if next, ok := propertyTransitions[current][event]; ok {
		return next, nil
	}
	return current, failure.InvalidTransitionf("property in status %s cannot accept event %s", current, event)
}

// TransitionBooking returns the booking status that follows event, or an
// InvalidTransition failure when the event is not legal from current.
func TransitionBooking(current models.BookingStatus, event BookingEvent) (models.BookingStatus, error) {
	if next, ok := bookingTransitions[current][event]; ok {
		return next, nil
	}
	return current, failure.InvalidTransitionf("booking in status %s cannot accept event %s", current, event)
}

// Occupies reports whether a booking in the given status counts toward
// property occupancy. PENDING_RELOCATION never occupies.
func Occupies(status models.BookingStatus) bool {
	return status == models.BookingActive
}
