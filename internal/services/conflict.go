package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/lifecycle"
	"github.com/jafarov01/property-management-bot/internal/models"
	"github.com/jafarov01/property-management-bot/internal/notify"
	"github.com/jafarov01/property-management-bot/internal/store"
)

// Conflict resolution. Each operation re-reads the involved rows under
// FOR UPDATE and re-validates their states before mutating; two operators
// resolving the same conflict race on the row locks and the loser gets a
// StateConflict instead of a second application.

// SwapGuests exchanges the pending and active bookings at one property:
// the parked guest takes the unit, the previously active booking parks
// pending relocation. Applying it twice restores the original assignment.
func (s *Service) SwapGuests(ctx context.Context, propertyCode string) error {
	code := normalizeCode(propertyCode)
	var pendingGuest, activeGuest string
	err := s.store.Transact(ctx, func(tx store.Store) error {
		prop, err := tx.GetPropertyByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}

		pending, err := tx.GetLatestPendingRelocation(ctx, code)
		if failure.IsNotFound(err) {
			return failure.StateConflictf("no booking pending relocation at %s, the conflict may already be resolved", code)
		} else if err != nil {
			return err
		}
		pending, err = tx.GetBookingByIDForUpdate(ctx, pending.ID)
		if err != nil {
			return err
		}
		if pending.Status != models.BookingPendingRelocation {
			return failure.StateConflictf("booking for %s is no longer pending relocation", pending.GuestName)
		}

		active, err := tx.GetActiveBookingForProperty(ctx, prop.ID)
		if failure.IsNotFound(err) {
			return failure.StateConflictf("no active booking at %s to swap with", code)
		} else if err != nil {
			return err
		}
		active, err = tx.GetBookingByIDForUpdate(ctx, active.ID)
		if err != nil {
			return err
		}
		if active.Status != models.BookingActive {
			return failure.StateConflictf("booking for %s is no longer active", active.GuestName)
		}

		nextPending, err := lifecycle.TransitionBooking(pending.Status, lifecycle.BookingResolved)
		if err != nil {
			return err
		}
		nextActive, err := lifecycle.TransitionBooking(active.Status, lifecycle.BookingConflictRaised)
		if err != nil {
			return err
		}

		pending.Status = nextPending
		pending.PropertyID = &prop.ID
		active.Status = nextActive
		active.PropertyID = nil

		if err := tx.SaveBooking(ctx, pending); err != nil {
			return err
		}
		if err := tx.SaveBooking(ctx, active); err != nil {
			return err
		}
		pendingGuest, activeGuest = pending.GuestName, active.GuestName
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateListings(ctx)
	s.emit(ctx, notify.Event{
		Topic: notify.TopicGeneral,
		Text:  fmt.Sprintf("Swap at %s: %s is now checked in, %s is pending relocation.", code, pendingGuest, activeGuest),
	})
	return nil
}

// CancelPendingRelocation cancels the parked booking at one property,
// leaving the active guest in place.
func (s *Service) CancelPendingRelocation(ctx context.Context, propertyCode string) error {
	code := normalizeCode(propertyCode)
	var guest string
	err := s.store.Transact(ctx, func(tx store.Store) error {
		pending, err := tx.GetLatestPendingRelocation(ctx, code)
		if failure.IsNotFound(err) {
			return failure.StateConflictf("no booking pending relocation at %s, the conflict may already be resolved", code)
		} else if err != nil {
			return err
		}
		pending, err = tx.GetBookingByIDForUpdate(ctx, pending.ID)
		if err != nil {
			return err
		}
		if pending.Status != models.BookingPendingRelocation {
			return failure.StateConflictf("booking for %s is no longer pending relocation", pending.GuestName)
		}

		next, err := lifecycle.TransitionBooking(pending.Status, lifecycle.BookingCancel)
		if err != nil {
			return err
		}
		pending.Status = next
		guest = pending.GuestName
		return tx.SaveBooking(ctx, pending)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, notify.Event{
		Topic: notify.TopicGeneral,
		Text:  fmt.Sprintf("Pending booking for %s at %s cancelled.", guest, code),
	})
	return nil
}

// RelocateGuest moves the parked booking at propertyCode into an available
// target property and schedules a checkout reminder for the evening before
// departure.
func (s *Service) RelocateGuest(ctx context.Context, propertyCode, targetCode string, checkoutDate time.Time) error {
	code := normalizeCode(propertyCode)
	target := normalizeCode(targetCode)
	if target == "" {
		return failure.Validationf("target property code is required")
	}
	if code == target {
		return failure.Validationf("cannot relocate a guest to the same property")
	}
	if checkoutDate.IsZero() {
		return failure.Validationf("checkout date is required for a relocation")
	}

	var moved models.Booking
	err := s.store.Transact(ctx, func(tx store.Store) error {
		pending, err := tx.GetLatestPendingRelocation(ctx, code)
		if failure.IsNotFound(err) {
			return failure.StateConflictf("no booking pending relocation at %s, the conflict may already be resolved", code)
		} else if err != nil {
			return err
		}
		pending, err = tx.GetBookingByIDForUpdate(ctx, pending.ID)
		if err != nil {
			return err
		}
		if pending.Status != models.BookingPendingRelocation {
			return failure.StateConflictf("booking for %s is no longer pending relocation", pending.GuestName)
		}

		targetProp, err := tx.GetPropertyByCodeForUpdate(ctx, target)
		if err != nil {
			return err
		}
		if targetProp.Status != models.PropertyAvailable {
			return failure.StateConflictf("property %s is %s, not AVAILABLE", target, targetProp.Status)
		}

		nextProp, err := lifecycle.TransitionProperty(targetProp.Status, lifecycle.PropertyCheckin)
		if err != nil {
			return err
		}
		nextBooking, err := lifecycle.TransitionBooking(pending.Status, lifecycle.BookingResolved)
		if err != nil {
			return err
		}

		originalCode := pending.PropertyCode
		targetProp.Status = nextProp
		pending.Status = nextBooking
		pending.PropertyID = &targetProp.ID
		pending.PropertyCode = targetProp.Code
		checkoutCopy := checkoutDate
		pending.CheckoutDate = &checkoutCopy

		if err := tx.SaveProperty(ctx, targetProp); err != nil {
			return err
		}
		if err := tx.SaveBooking(ctx, pending); err != nil {
			return err
		}
		if err := tx.CreateRelocation(ctx, &models.Relocation{
			BookingID:            pending.ID,
			GuestName:            pending.GuestName,
			OriginalPropertyCode: originalCode,
			NewPropertyCode:      targetProp.Code,
		}); err != nil {
			return err
		}
		moved = *pending
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateListings(ctx)
	s.indexBooking(ctx, &moved)
	s.scheduleCheckoutReminder(moved)
	s.emit(ctx, notify.Event{
		Topic: notify.TopicGeneral,
		Text:  fmt.Sprintf("%s relocated from %s to %s, checkout %s.", moved.GuestName, code, moved.PropertyCode, checkoutDate.Format("2006-01-02")),
	})
	return nil
}

// scheduleCheckoutReminder arms a one-shot reminder for the evening before
// the booking's checkout.
func (s *Service) scheduleCheckoutReminder(booking models.Booking) {
	if s.sched == nil || booking.CheckoutDate == nil {
		return
	}
	at := s.checkoutReminderTime(*booking.CheckoutDate)
	name := checkoutReminderJobName(booking.ID)
	err := s.sched.RegisterOneShot(name, at, func() {
		s.emit(context.Background(), notify.Event{
			Topic: notify.TopicIssues,
			Text: fmt.Sprintf("Reminder: %s checks out of %s tomorrow (%s).",
				booking.GuestName, booking.PropertyCode, booking.CheckoutDate.Format("2006-01-02")),
		})
	})
	if err != nil {
		log.Error().Err(err).Str("booking_id", booking.ID.String()).Msg("failed to schedule checkout reminder")
	}
}
