package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jafarov01/property-management-bot/config"
	"github.com/jafarov01/property-management-bot/internal/cache"
	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/models"
	"github.com/jafarov01/property-management-bot/internal/notify"
	"github.com/jafarov01/property-management-bot/internal/parsing"
	"github.com/jafarov01/property-management-bot/internal/pipeline"
	"github.com/jafarov01/property-management-bot/internal/scheduler"
	"github.com/jafarov01/property-management-bot/internal/search"
	"github.com/jafarov01/property-management-bot/internal/store/storetest"
)

type mockParser struct {
	mock.Mock
}

func (m *mockParser) ParseBookingEmail(ctx context.Context, raw string) (*parsing.EmailResult, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*parsing.EmailResult), args.Error(1)
}

func (m *mockParser) ParseCheckinList(ctx context.Context, raw string, date time.Time) ([]parsing.CheckinEntry, error) {
	args := m.Called(ctx, raw, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]parsing.CheckinEntry), args.Error(1)
}

func (m *mockParser) ParseCleaningList(ctx context.Context, raw string) ([]string, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type fixture struct {
	svc      *Service
	store    *storetest.Memory
	recorder *notify.Recorder
	parser   *mockParser
	queue    *pipeline.Queue
	sched    *scheduler.Scheduler
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	mem := storetest.New()
	mem.Now = clock.Now
	recorder := notify.NewRecorder()
	parser := new(mockParser)
	queue := pipeline.NewQueue()

	sched, err := scheduler.NewWithClock(time.UTC, clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })

	jobsCfg := config.JobsConfig{
		MidnightSweepCron:  "5 0 * * *",
		DailyBriefingCron:  "0 10 * * *",
		ReminderInterval:   5 * time.Minute,
		ReminderThreshold:  15 * time.Minute,
		LateCleaningDelay:  15 * time.Minute,
		CheckoutReminderAt: "18:00",
	}

	svc := NewService(mem, recorder, parser, &cache.RedisCache{}, &search.ElasticClient{},
		sched, queue, clock, time.UTC, jobsCfg)
	return &fixture{
		svc:      svc,
		store:    mem,
		recorder: recorder,
		parser:   parser,
		queue:    queue,
		sched:    sched,
		clock:    clock,
	}
}

func (f *fixture) seedProperty(t *testing.T, code string, status models.PropertyStatus) models.Property {
	t.Helper()
	prop := models.Property{ID: uuid.New(), Code: code, Status: status}
	require.NoError(t, f.store.CreateProperty(context.Background(), &prop))
	return prop
}

func (f *fixture) seedActiveBooking(t *testing.T, prop models.Property, guest string) models.Booking {
	t.Helper()
	booking := models.Booking{
		ID:           uuid.New(),
		PropertyCode: prop.Code,
		PropertyID:   &prop.ID,
		GuestName:    guest,
		CheckinDate:  f.clock.Now(),
		Status:       models.BookingActive,
	}
	require.NoError(t, f.store.CreateBooking(context.Background(), &booking))
	return booking
}

func TestCheckinAvailableProperty(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "A12", models.PropertyAvailable)

	outcome, err := f.svc.Checkin(context.Background(), CheckinRequest{
		PropertyCode: "a12",
		GuestName:    "Anna Kovacs",
		Platform:     "Airbnb",
	})
	require.NoError(t, err)

	assert.False(t, outcome.Conflict)
	assert.Equal(t, models.BookingActive, outcome.Booking.Status)
	assert.Equal(t, models.PropertyOccupied, outcome.Property.Status)

	prop, err := f.store.GetPropertyByCode(context.Background(), "A12")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyOccupied, prop.Status)
}

func TestCheckinCreatesUnknownProperty(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.svc.Checkin(context.Background(), CheckinRequest{
		PropertyCode: "B7",
		GuestName:    "Peter Nagy",
	})
	require.NoError(t, err)
	assert.False(t, outcome.Conflict)

	prop, err := f.store.GetPropertyByCode(context.Background(), "B7")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyOccupied, prop.Status)
}

func TestCheckinConflictParksBooking(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	f.seedActiveBooking(t, prop, "First Guest")

	outcome, err := f.svc.Checkin(context.Background(), CheckinRequest{
		PropertyCode: "A12",
		GuestName:    "Second Guest",
	})
	require.NoError(t, err)

	assert.True(t, outcome.Conflict)
	assert.Equal(t, models.BookingPendingRelocation, outcome.Booking.Status)
	assert.Nil(t, outcome.Booking.PropertyID)

	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.TopicIssues, events[0].Topic)
	assert.Len(t, events[0].Actions, 4)
}

func TestCheckinValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkin(context.Background(), CheckinRequest{GuestName: "X"})
	assert.True(t, failure.IsValidation(err))

	_, err = f.svc.Checkin(context.Background(), CheckinRequest{PropertyCode: "A1"})
	assert.True(t, failure.IsValidation(err))
}

func TestSwapGuestsExchangesBookings(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	active := f.seedActiveBooking(t, prop, "First Guest")

	f.clock.Advance(time.Minute)
	outcome, err := f.svc.Checkin(context.Background(), CheckinRequest{PropertyCode: "A12", GuestName: "Second Guest"})
	require.NoError(t, err)
	require.True(t, outcome.Conflict)

	require.NoError(t, f.svc.SwapGuests(context.Background(), "A12"))

	swapped, err := f.store.GetBookingByID(context.Background(), outcome.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingActive, swapped.Status)
	require.NotNil(t, swapped.PropertyID)
	assert.Equal(t, prop.ID, *swapped.PropertyID)

	demoted, err := f.store.GetBookingByID(context.Background(), active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPendingRelocation, demoted.Status)
	assert.Nil(t, demoted.PropertyID)
}

func TestSwapTwiceRestoresOriginalAssignment(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	active := f.seedActiveBooking(t, prop, "First Guest")

	f.clock.Advance(time.Minute)
	outcome, err := f.svc.Checkin(context.Background(), CheckinRequest{PropertyCode: "A12", GuestName: "Second Guest"})
	require.NoError(t, err)

	require.NoError(t, f.svc.SwapGuests(context.Background(), "A12"))
	require.NoError(t, f.svc.SwapGuests(context.Background(), "A12"))

	restored, err := f.store.GetBookingByID(context.Background(), active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingActive, restored.Status)
	require.NotNil(t, restored.PropertyID)
	assert.Equal(t, prop.ID, *restored.PropertyID)

	parked, err := f.store.GetBookingByID(context.Background(), outcome.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPendingRelocation, parked.Status)
}

func TestCancelPendingRelocation(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	f.seedActiveBooking(t, prop, "First Guest")

	outcome, err := f.svc.Checkin(context.Background(), CheckinRequest{PropertyCode: "A12", GuestName: "Second Guest"})
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelPendingRelocation(context.Background(), "A12"))

	cancelled, err := f.store.GetBookingByID(context.Background(), outcome.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)

	// Nothing left to cancel.
	err = f.svc.CancelPendingRelocation(context.Background(), "A12")
	assert.True(t, failure.IsStateConflict(err))
}

func TestRelocateGuest(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	f.seedActiveBooking(t, prop, "First Guest")
	target := f.seedProperty(t, "C03", models.PropertyAvailable)

	outcome, err := f.svc.Checkin(context.Background(), CheckinRequest{PropertyCode: "A12", GuestName: "Second Guest"})
	require.NoError(t, err)

	checkout := f.clock.Now().AddDate(0, 0, 3)
	require.NoError(t, f.svc.RelocateGuest(context.Background(), "A12", "C03", checkout))

	moved, err := f.store.GetBookingByID(context.Background(), outcome.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingActive, moved.Status)
	assert.Equal(t, "C03", moved.PropertyCode)
	require.NotNil(t, moved.PropertyID)
	assert.Equal(t, target.ID, *moved.PropertyID)

	targetProp, err := f.store.GetPropertyByCode(context.Background(), "C03")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyOccupied, targetProp.Status)

	relocations, err := f.store.ListRelocations(context.Background(), "C03", 10)
	require.NoError(t, err)
	require.Len(t, relocations, 1)
	assert.Equal(t, "A12", relocations[0].OriginalPropertyCode)

	assert.Contains(t, f.sched.Names(), "checkout-reminder-"+moved.ID.String())
}

func TestRelocateRejectsUnavailableTarget(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	f.seedActiveBooking(t, prop, "First Guest")
	f.seedProperty(t, "C03", models.PropertyMaintenance)

	_, err := f.svc.Checkin(context.Background(), CheckinRequest{PropertyCode: "A12", GuestName: "Second Guest"})
	require.NoError(t, err)

	err = f.svc.RelocateGuest(context.Background(), "A12", "C03", f.clock.Now().AddDate(0, 0, 2))
	assert.True(t, failure.IsStateConflict(err))
}

func TestConcurrentResolutionHasOneWinner(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	f.seedActiveBooking(t, prop, "First Guest")
	f.seedProperty(t, "C03", models.PropertyAvailable)

	_, err := f.svc.Checkin(context.Background(), CheckinRequest{PropertyCode: "A12", GuestName: "Second Guest"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- f.svc.CancelPendingRelocation(context.Background(), "A12")
	}()
	go func() {
		defer wg.Done()
		results <- f.svc.RelocateGuest(context.Background(), "A12", "C03", f.clock.Now().AddDate(0, 0, 2))
	}()
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case failure.IsStateConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)
}

func TestConcurrentCancelAndEarlyCheckoutHasOneWinner(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	booking := f.seedActiveBooking(t, prop, "Guest")

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- f.svc.CancelBooking(context.Background(), booking.ID)
	}()
	go func() {
		defer wg.Done()
		_, err := f.svc.EarlyCheckout(context.Background(), "A12")
		results <- err
	}()
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case failure.IsInvalidTransition(err) || failure.IsStateConflict(err):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	final, err := f.store.GetBookingByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Contains(t, []models.BookingStatus{models.BookingCancelled, models.BookingDeparted}, final.Status)
}

func TestEarlyCheckoutDepartsGuest(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	booking := f.seedActiveBooking(t, prop, "Guest")

	updated, err := f.svc.EarlyCheckout(context.Background(), "A12")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyPendingCleaning, updated.Status)

	departed, err := f.store.GetBookingByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingDeparted, departed.Status)
	require.NotNil(t, departed.CheckoutDate)
}

func TestSetCleanRequiresPendingCleaning(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "A12", models.PropertyPendingCleaning)
	f.seedProperty(t, "B7", models.PropertyAvailable)

	prop, err := f.svc.SetClean(context.Background(), "A12")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyAvailable, prop.Status)

	_, err = f.svc.SetClean(context.Background(), "B7")
	assert.True(t, failure.IsInvalidTransition(err))
}

func TestBlockOccupiedPropertyRejected(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "A12", models.PropertyOccupied)

	_, err := f.svc.BlockProperty(context.Background(), "A12", "pipe burst")
	assert.True(t, failure.IsInvalidTransition(err))
}

func TestBlockUnblockRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "A12", models.PropertyAvailable)

	blocked, err := f.svc.BlockProperty(context.Background(), "A12", "repaint")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyMaintenance, blocked.Status)
	assert.Equal(t, "repaint", blocked.Notes)

	unblocked, err := f.svc.UnblockProperty(context.Background(), "A12")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyAvailable, unblocked.Status)
}

func TestCancelActiveBookingFreesProperty(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	booking := f.seedActiveBooking(t, prop, "Guest")

	require.NoError(t, f.svc.CancelBooking(context.Background(), booking.ID))

	cancelled, err := f.store.GetBookingByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)

	freed, err := f.store.GetPropertyByCode(context.Background(), "A12")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyAvailable, freed.Status)

	err = f.svc.CancelBooking(context.Background(), booking.ID)
	assert.True(t, failure.IsInvalidTransition(err))
}

func TestRenamePropertyRewritesBookingLabels(t *testing.T) {
	f := newFixture(t)
	prop := f.seedProperty(t, "A12", models.PropertyOccupied)
	booking := f.seedActiveBooking(t, prop, "Guest")

	require.NoError(t, f.svc.RenameProperty(context.Background(), "A12", "LOFT1"))

	renamed, err := f.store.GetPropertyByCode(context.Background(), "LOFT1")
	require.NoError(t, err)
	assert.Equal(t, prop.ID, renamed.ID)

	relabeled, err := f.store.GetBookingByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "LOFT1", relabeled.PropertyCode)

	_, err = f.store.GetPropertyByCode(context.Background(), "A12")
	assert.True(t, failure.IsNotFound(err))
}

func TestRenameRejectsExistingCode(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "A12", models.PropertyAvailable)
	f.seedProperty(t, "B7", models.PropertyAvailable)

	err := f.svc.RenameProperty(context.Background(), "A12", "B7")
	assert.True(t, failure.IsValidation(err))
}

func TestProcessCleaningList(t *testing.T) {
	f := newFixture(t)
	occupied := f.seedProperty(t, "A12", models.PropertyOccupied)
	f.seedActiveBooking(t, occupied, "Guest")
	f.seedProperty(t, "B7", models.PropertyAvailable)

	f.parser.On("ParseCleaningList", mock.Anything, "raw list").Return([]string{"A12", "B7", "ZZ9"}, nil)

	receipt, err := f.svc.ProcessCleaningList(context.Background(), "raw list")
	require.NoError(t, err)

	assert.Contains(t, receipt, "A12")
	assert.Contains(t, receipt, "Warning: B7")
	assert.Contains(t, receipt, "Warning: ZZ9")

	prop, err := f.store.GetPropertyByCode(context.Background(), "A12")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyPendingCleaning, prop.Status)

	// A late-list sweep is armed.
	names := f.sched.Names()
	found := false
	for _, name := range names {
		if len(name) > len("late-cleaning-") && name[:len("late-cleaning-")] == "late-cleaning-" {
			found = true
		}
	}
	assert.True(t, found, "expected a late-cleaning one-shot, got %v", names)
}

func TestReleaseCleanedProperties(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "A12", models.PropertyPendingCleaning)
	f.seedProperty(t, "B7", models.PropertyPendingCleaning)
	f.seedProperty(t, "C03", models.PropertyOccupied)

	released, err := f.svc.ReleaseCleanedProperties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A12", "B7"}, released)

	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Text, "A12, B7")

	untouched, err := f.store.GetPropertyByCode(context.Background(), "C03")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyOccupied, untouched.Status)
}

func TestReleaseCleanedPropertiesSilentWhenEmpty(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "A12", models.PropertyAvailable)

	released, err := f.svc.ReleaseCleanedProperties(context.Background())
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.Empty(t, f.recorder.Events())
}

func TestDailyBriefingCountsStatuses(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "A12", models.PropertyAvailable)
	f.seedProperty(t, "B7", models.PropertyOccupied)
	f.seedProperty(t, "C03", models.PropertyOccupied)

	require.NoError(t, f.svc.DailyBriefing(context.Background()))

	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.TopicGeneral, events[0].Topic)
	assert.Contains(t, events[0].Text, "AVAILABLE: 1")
	assert.Contains(t, events[0].Text, "OCCUPIED: 2")
}
