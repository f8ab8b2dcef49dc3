package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jafarov01/property-management-bot/internal/models"
	"github.com/jafarov01/property-management-bot/internal/notify"
	"github.com/jafarov01/property-management-bot/internal/store"
)

// DailyBriefing posts the morning occupancy summary to the general
// channel.
func (s *Service) DailyBriefing(ctx context.Context) error {
	counts, err := s.StatusSummary(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Daily briefing for %s:", s.now().Format("2006-01-02"))
	for _, status := range []models.PropertyStatus{
		models.PropertyAvailable,
		models.PropertyOccupied,
		models.PropertyPendingCleaning,
		models.PropertyMaintenance,
	} {
		fmt.Fprintf(&b, "\n%s: %d", status, counts[status])
	}

	s.emit(ctx, notify.Event{Topic: notify.TopicGeneral, Text: b.String()})
	return nil
}

// ReminderSweep reminds about OPEN alerts and pending relocations older
// than the configured threshold. Each row is reminded exactly once: the
// counter flips 0 to 1 in the same transaction that justifies the
// reminder, so later sweeps skip it.
func (s *Service) ReminderSweep(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.jobs.ReminderThreshold)

	var staleAlerts []models.EmailAlert
	err := s.store.Transact(ctx, func(tx store.Store) error {
		alerts, err := tx.ListStaleOpenAlerts(ctx, cutoff)
		if err != nil {
			return err
		}
		for i := range alerts {
			alert := alerts[i]
			alert.RemindersSent = 1
			if err := tx.SaveAlert(ctx, &alert); err != nil {
				return err
			}
			staleAlerts = append(staleAlerts, alert)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var staleBookings []models.Booking
	err = s.store.Transact(ctx, func(tx store.Store) error {
		bookings, err := tx.ListStalePendingRelocations(ctx, cutoff)
		if err != nil {
			return err
		}
		for i := range bookings {
			booking := bookings[i]
			booking.RemindersSent = 1
			if err := tx.SaveBooking(ctx, &booking); err != nil {
				return err
			}
			staleBookings = append(staleBookings, booking)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, alert := range staleAlerts {
		s.emit(ctx, notify.Event{
			Topic: notify.TopicEmails,
			Text:  fmt.Sprintf("Unhandled email alert: %s (waiting since %s).", alert.Summary, alert.CreatedAt.Format("15:04")),
		})
	}
	for _, booking := range staleBookings {
		s.emit(ctx, notify.Event{
			Topic: notify.TopicIssues,
			Text:  fmt.Sprintf("%s is still waiting for relocation from %s.", booking.GuestName, booking.PropertyCode),
		})
	}
	return nil
}
