package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/models"
	"github.com/jafarov01/property-management-bot/internal/notify"
	"github.com/jafarov01/property-management-bot/internal/pipeline"
	"github.com/jafarov01/property-management-bot/internal/store"
)

// MailboxMessage is the wire shape the mailbox collaborator publishes for
// each inbound email.
type MailboxMessage struct {
	ExternalMessageID string `json:"external_message_id"`
	Subject           string `json:"subject"`
	Body              string `json:"body"`
}

// IngestMailboxMessage is the Service Bus handler. It records the email as
// an OPEN alert, notifies the emails channel, and enqueues a parse job.
// Ingestion is idempotent on ExternalMessageID: a redelivered message is a
// no-op, so completing the bus message only after this returns can never
// lose or duplicate an alert.
func (s *Service) IngestMailboxMessage(ctx context.Context, body []byte) error {
	var msg MailboxMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return errors.Wrap(err, "failed to decode mailbox message")
	}
	if msg.ExternalMessageID == "" {
		return failure.Validationf("mailbox message has no external message id")
	}

	_, err := s.store.GetAlertByExternalMessageID(ctx, msg.ExternalMessageID)
	if err == nil {
		log.Info().Str("external_message_id", msg.ExternalMessageID).Msg("duplicate mailbox message ignored")
		return nil
	}
	if !failure.IsNotFound(err) {
		return err
	}

	alert := models.EmailAlert{
		ID:                uuid.New(),
		ExternalMessageID: msg.ExternalMessageID,
		Category:          "UNCLASSIFIED",
		Status:            models.AlertOpen,
		Summary:           "Subject: " + msg.Subject,
		Body:              msg.Body,
	}
	if err := s.store.CreateAlert(ctx, &alert); err != nil {
		// A concurrent redelivery may have won the unique-index race.
		if _, lookupErr := s.store.GetAlertByExternalMessageID(ctx, msg.ExternalMessageID); lookupErr == nil {
			return nil
		}
		return err
	}

	handle := s.emit(ctx, notify.Event{
		Topic: notify.TopicEmails,
		Text:  fmt.Sprintf("New email alert: %s", alert.Summary),
		Actions: []notify.Action{
			{Label: "Mark handled", Command: "handle_email:" + alert.ID.String()},
		},
	})
	if handle != 0 {
		alert.DeliveryHandle = handle
		if err := s.store.SaveAlert(ctx, &alert); err != nil {
			log.Error().Err(err).Str("alert_id", alert.ID.String()).Msg("failed to store delivery handle")
		}
	}

	s.queue.Enqueue(pipeline.Job{AlertID: alert.ID, ExternalMessageID: alert.ExternalMessageID})
	return nil
}

// HandleParseJob is the pipeline consumer handler. It runs the alert body
// through the parsing service: success fills the structured fields and
// rewrites the outbound notification in place, failure marks the alert
// PARSING_FAILED and raises an issue.
func (s *Service) HandleParseJob(ctx context.Context, job pipeline.Job) error {
	alert, err := s.store.GetAlertByID(ctx, job.AlertID)
	if err != nil {
		return err
	}
	if alert.Status != models.AlertOpen {
		log.Info().Str("alert_id", alert.ID.String()).Str("status", string(alert.Status)).Msg("skipping parse for settled alert")
		return nil
	}

	result, parseErr := s.parser.ParseBookingEmail(ctx, alert.Body)
	if parseErr != nil {
		return s.markParsingFailed(ctx, alert, parseErr)
	}

	err = s.store.Transact(ctx, func(tx store.Store) error {
		current, err := tx.GetAlertByIDForUpdate(ctx, alert.ID)
		if err != nil {
			return err
		}
		if current.Status != models.AlertOpen {
			return nil
		}
		current.Category = result.Category
		if result.Summary != "" {
			current.Summary = result.Summary
		}
		current.GuestName = result.GuestName
		current.PropertyCode = normalizeCode(result.PropertyCode)
		current.Platform = result.Platform
		current.ReservationNumber = result.ReservationNumber
		current.Deadline = result.Deadline
		if err := tx.SaveAlert(ctx, current); err != nil {
			return err
		}
		*alert = *current
		return nil
	})
	if err != nil {
		return err
	}

	if alert.DeliveryHandle != 0 {
		text := renderAlertText(alert)
		if err := s.emitter.Edit(ctx, alert.DeliveryHandle, text); err != nil {
			log.Warn().Err(err).Str("alert_id", alert.ID.String()).Msg("failed to edit alert notification")
		}
	}
	return nil
}

func (s *Service) markParsingFailed(ctx context.Context, alert *models.EmailAlert, parseErr error) error {
	err := s.store.Transact(ctx, func(tx store.Store) error {
		current, err := tx.GetAlertByIDForUpdate(ctx, alert.ID)
		if err != nil {
			return err
		}
		if current.Status != models.AlertOpen {
			return nil
		}
		current.Status = models.AlertParsingFailed
		current.Summary = fmt.Sprintf("%s\nParsing failed: %s", current.Summary, userMessage(parseErr))
		return tx.SaveAlert(ctx, current)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, notify.Event{
		Topic: notify.TopicIssues,
		Text:  fmt.Sprintf("Email alert %s could not be parsed, manual review needed.", alert.ExternalMessageID),
	})
	log.Error().Err(parseErr).Str("alert_id", alert.ID.String()).Msg("alert parsing failed")
	return nil
}

// MarkAlertHandled settles an OPEN alert with the operator's identity.
// A second handler loses with StateConflict.
func (s *Service) MarkAlertHandled(ctx context.Context, alertID uuid.UUID, operator string) (*models.EmailAlert, error) {
	if strings.TrimSpace(operator) == "" {
		return nil, failure.Validationf("operator name is required")
	}

	var handled models.EmailAlert
	err := s.store.Transact(ctx, func(tx store.Store) error {
		alert, err := tx.GetAlertByIDForUpdate(ctx, alertID)
		if err != nil {
			return err
		}
		if alert.Status == models.AlertHandled {
			return failure.StateConflictf("alert already handled by %s", alert.HandledBy)
		}
		if alert.Status != models.AlertOpen {
			return failure.StateConflictf("alert is %s, not OPEN", alert.Status)
		}
		now := s.now()
		alert.Status = models.AlertHandled
		alert.HandledBy = strings.TrimSpace(operator)
		alert.HandledAt = &now
		if err := tx.SaveAlert(ctx, alert); err != nil {
			return err
		}
		handled = *alert
		return nil
	})
	if err != nil {
		return nil, err
	}

	if handled.DeliveryHandle != 0 {
		text := renderAlertText(&handled)
		if err := s.emitter.Edit(ctx, handled.DeliveryHandle, text); err != nil {
			log.Warn().Err(err).Str("alert_id", handled.ID.String()).Msg("failed to edit alert notification")
		}
	}
	return &handled, nil
}

// renderAlertText renders the current alert state for the emails channel.
func renderAlertText(alert *models.EmailAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", alert.Category, alert.Summary)
	if alert.GuestName != "" {
		fmt.Fprintf(&b, "\nGuest: %s", alert.GuestName)
	}
	if alert.PropertyCode != "" {
		fmt.Fprintf(&b, "\nProperty: %s", alert.PropertyCode)
	}
	if alert.Platform != "" {
		fmt.Fprintf(&b, "\nPlatform: %s", alert.Platform)
	}
	if alert.ReservationNumber != "" {
		fmt.Fprintf(&b, "\nReservation: %s", alert.ReservationNumber)
	}
	if alert.Deadline != "" {
		fmt.Fprintf(&b, "\nDeadline: %s", alert.Deadline)
	}
	if alert.Status == models.AlertHandled {
		fmt.Fprintf(&b, "\nHandled by %s", alert.HandledBy)
	}
	return b.String()
}
