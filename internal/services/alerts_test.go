package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/models"
	"github.com/jafarov01/property-management-bot/internal/notify"
	"github.com/jafarov01/property-management-bot/internal/parsing"
)

func mailboxBody(t *testing.T, id, subject, body string) []byte {
	t.Helper()
	raw, err := json.Marshal(MailboxMessage{ExternalMessageID: id, Subject: subject, Body: body})
	require.NoError(t, err)
	return raw
}

func TestIngestMailboxMessage(t *testing.T) {
	f := newFixture(t)

	err := f.svc.IngestMailboxMessage(context.Background(), mailboxBody(t, "msg-1", "Booking request", "please confirm"))
	require.NoError(t, err)

	alert, err := f.store.GetAlertByExternalMessageID(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertOpen, alert.Status)
	assert.Equal(t, "Subject: Booking request", alert.Summary)
	assert.NotZero(t, alert.DeliveryHandle)

	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.TopicEmails, events[0].Topic)

	assert.Equal(t, 1, f.queue.Len())
}

func TestIngestMailboxMessageIdempotent(t *testing.T) {
	f := newFixture(t)
	body := mailboxBody(t, "msg-1", "Booking request", "please confirm")

	require.NoError(t, f.svc.IngestMailboxMessage(context.Background(), body))
	require.NoError(t, f.svc.IngestMailboxMessage(context.Background(), body))

	assert.Equal(t, 1, f.queue.Len())
	assert.Len(t, f.recorder.Events(), 1)
}

func TestIngestMailboxMessageRejectsMissingID(t *testing.T) {
	f := newFixture(t)

	err := f.svc.IngestMailboxMessage(context.Background(), mailboxBody(t, "", "subject", "body"))
	assert.True(t, failure.IsValidation(err))

	err = f.svc.IngestMailboxMessage(context.Background(), []byte("not json"))
	assert.Error(t, err)
}

func TestHandleParseJobpopulatesAlert(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.IngestMailboxMessage(context.Background(), mailboxBody(t, "msg-1", "Booking request", "raw email body")))
	alert, err := f.store.GetAlertByExternalMessageID(context.Background(), "msg-1")
	require.NoError(t, err)

	f.parser.On("ParseBookingEmail", mock.Anything, "raw email body").Return(&parsing.EmailResult{
		Category:          "NEW_BOOKING",
		Summary:           "New booking for A12",
		GuestName:         "Anna Kovacs",
		PropertyCode:      "a12",
		Platform:          "Booking.com",
		ReservationNumber: "R-991",
		Deadline:          "2026-09-02",
	}, nil)

	job, ok := f.queue.Dequeue(context.Background())
	require.True(t, ok)
	require.NoError(t, f.svc.HandleParseJob(context.Background(), job))

	parsed, err := f.store.GetAlertByID(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, "NEW_BOOKING", parsed.Category)
	assert.Equal(t, "New booking for A12", parsed.Summary)
	assert.Equal(t, "A12", parsed.PropertyCode)
	assert.Equal(t, models.AlertOpen, parsed.Status)

	edits := f.recorder.Edits(parsed.DeliveryHandle)
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0], "Anna Kovacs")
}

func TestHandleParseJobFailureMarksAlert(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.IngestMailboxMessage(context.Background(), mailboxBody(t, "msg-1", "Garbled", "???")))

	f.parser.On("ParseBookingEmail", mock.Anything, "???").
		Return(nil, failure.ExternalServicef(errors.New("status 422"), "parsing service rejected the email"))

	job, ok := f.queue.Dequeue(context.Background())
	require.True(t, ok)
	require.NoError(t, f.svc.HandleParseJob(context.Background(), job))

	alert, err := f.store.GetAlertByExternalMessageID(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertParsingFailed, alert.Status)
	assert.Contains(t, alert.Summary, "Parsing failed")

	events := f.recorder.Events()
	require.Len(t, events, 2)
	assert.Equal(t, notify.TopicIssues, events[1].Topic)
}

func TestMarkAlertHandled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.IngestMailboxMessage(context.Background(), mailboxBody(t, "msg-1", "Booking request", "body")))
	alert, err := f.store.GetAlertByExternalMessageID(context.Background(), "msg-1")
	require.NoError(t, err)

	handled, err := f.svc.MarkAlertHandled(context.Background(), alert.ID, "melinda")
	require.NoError(t, err)
	assert.Equal(t, models.AlertHandled, handled.Status)
	assert.Equal(t, "melinda", handled.HandledBy)
	require.NotNil(t, handled.HandledAt)

	_, err = f.svc.MarkAlertHandled(context.Background(), alert.ID, "gabor")
	assert.True(t, failure.IsStateConflict(err))

	stored, err := f.store.GetAlertByID(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, "melinda", stored.HandledBy)
}

func TestHandleParseJobSkipsSettledAlert(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.IngestMailboxMessage(context.Background(), mailboxBody(t, "msg-1", "Booking request", "body")))
	alert, err := f.store.GetAlertByExternalMessageID(context.Background(), "msg-1")
	require.NoError(t, err)

	_, err = f.svc.MarkAlertHandled(context.Background(), alert.ID, "melinda")
	require.NoError(t, err)

	job, ok := f.queue.Dequeue(context.Background())
	require.True(t, ok)
	require.NoError(t, f.svc.HandleParseJob(context.Background(), job))
	f.parser.AssertNotCalled(t, "ParseBookingEmail", mock.Anything, mock.Anything)
}

func TestReminderSweepRemindsExactlyOnce(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.IngestMailboxMessage(context.Background(), mailboxBody(t, "msg-1", "Waiting", "body")))
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	f.seedActiveBooking(t, prop, "First Guest")
	_, err := f.svc.Checkin(context.Background(), CheckinRequest{PropertyCode: "A12", GuestName: "Second Guest"})
	require.NoError(t, err)

	sent := len(f.recorder.Events())

	// Not stale yet.
	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.svc.ReminderSweep(context.Background()))
	assert.Len(t, f.recorder.Events(), sent)

	// Past threshold: one reminder each for the alert and the parked guest.
	f.clock.Advance(15 * time.Minute)
	require.NoError(t, f.svc.ReminderSweep(context.Background()))
	assert.Len(t, f.recorder.Events(), sent+2)

	// Never again.
	f.clock.Advance(time.Hour)
	require.NoError(t, f.svc.ReminderSweep(context.Background()))
	require.NoError(t, f.svc.ReminderSweep(context.Background()))
	assert.Len(t, f.recorder.Events(), sent+2)

	alert, err := f.store.GetAlertByExternalMessageID(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, 1, alert.RemindersSent)
}
