package commands

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarov01/property-management-bot/config"
	"github.com/jafarov01/property-management-bot/internal/cache"
	"github.com/jafarov01/property-management-bot/internal/models"
	"github.com/jafarov01/property-management-bot/internal/notify"
	"github.com/jafarov01/property-management-bot/internal/pipeline"
	"github.com/jafarov01/property-management-bot/internal/scheduler"
	"github.com/jafarov01/property-management-bot/internal/search"
	"github.com/jafarov01/property-management-bot/internal/services"
	"github.com/jafarov01/property-management-bot/internal/store/storetest"
)

func newTestRegistry(t *testing.T) (*Registry, *storetest.Memory) {
	t.Helper()
	return newTestRegistryWithClock(t, clockwork.NewFakeClock())
}

func newTestRegistryWithClock(t *testing.T, clock *clockwork.FakeClock) (*Registry, *storetest.Memory) {
	t.Helper()

	mem := storetest.New()
	mem.Now = clock.Now

	sched, err := scheduler.NewWithClock(time.UTC, clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })

	svc := services.NewService(mem, notify.NewRecorder(), nil, &cache.RedisCache{}, &search.ElasticClient{},
		sched, pipeline.NewQueue(), clock, time.UTC, config.JobsConfig{
			ReminderThreshold:  15 * time.Minute,
			LateCleaningDelay:  15 * time.Minute,
			CheckoutReminderAt: "18:00",
		})
	return NewRegistry(svc), mem
}

func seedProperty(t *testing.T, mem *storetest.Memory, code string, status models.PropertyStatus) models.Property {
	t.Helper()
	prop := models.Property{ID: uuid.New(), Code: code, Status: status}
	require.NoError(t, mem.CreateProperty(context.Background(), &prop))
	return prop
}

func TestHelpListsEveryCommand(t *testing.T) {
	r, _ := newTestRegistry(t)

	reply := r.Execute(context.Background(), "help", nil)
	for name := range r.commands {
		assert.Contains(t, reply, name)
	}
}

func TestUnknownCommand(t *testing.T) {
	r, _ := newTestRegistry(t)

	reply := r.Execute(context.Background(), "make_coffee", nil)
	assert.Contains(t, reply, "Unknown command")
}

func TestStatusCommand(t *testing.T) {
	r, mem := newTestRegistry(t)
	seedProperty(t, mem, "A12", models.PropertyAvailable)
	seedProperty(t, mem, "B7", models.PropertyOccupied)

	reply := r.Execute(context.Background(), "status", nil)
	assert.Contains(t, reply, "AVAILABLE: 1")
	assert.Contains(t, reply, "OCCUPIED: 1")
	assert.Contains(t, reply, "MAINTENANCE: 0")
}

func TestCheckCommand(t *testing.T) {
	r, mem := newTestRegistry(t)
	seedProperty(t, mem, "A12", models.PropertyAvailable)

	reply := r.Execute(context.Background(), "check", []string{"a12"})
	assert.Contains(t, reply, "A12 is AVAILABLE")
}

func TestUnknownCodeGetsSuggestion(t *testing.T) {
	r, mem := newTestRegistry(t)
	seedProperty(t, mem, "LOFT1", models.PropertyAvailable)

	reply := r.Execute(context.Background(), "check", []string{"LOFT2"})
	assert.Contains(t, reply, "not found")
	assert.Contains(t, reply, "Did you mean LOFT1?")
}

func TestUnknownCodeWithoutCloseMatch(t *testing.T) {
	r, mem := newTestRegistry(t)
	seedProperty(t, mem, "LOFT1", models.PropertyAvailable)

	reply := r.Execute(context.Background(), "check", []string{"XYZQW"})
	assert.Contains(t, reply, "not found")
	assert.NotContains(t, reply, "Did you mean")
}

func TestValidationIncludesUsage(t *testing.T) {
	r, _ := newTestRegistry(t)

	reply := r.Execute(context.Background(), "check", nil)
	assert.Contains(t, reply, "Usage: check <code>")
}

func TestSetCleanCommand(t *testing.T) {
	r, mem := newTestRegistry(t)
	seedProperty(t, mem, "A12", models.PropertyPendingCleaning)

	reply := r.Execute(context.Background(), "set_clean", []string{"A12"})
	assert.Contains(t, reply, "A12 is clean and AVAILABLE")

	// Second attempt is an invalid transition, reported as-is.
	reply = r.Execute(context.Background(), "set_clean", []string{"A12"})
	assert.Contains(t, reply, "cannot accept")
}

func TestBlockAndUnblockCommands(t *testing.T) {
	r, mem := newTestRegistry(t)
	seedProperty(t, mem, "A12", models.PropertyAvailable)

	reply := r.Execute(context.Background(), "block_property", []string{"A12", "broken", "boiler"})
	assert.Contains(t, reply, "blocked for maintenance")

	reply = r.Execute(context.Background(), "unblock_property", []string{"A12"})
	assert.Contains(t, reply, "back in service")
}

func TestRenameCommand(t *testing.T) {
	r, mem := newTestRegistry(t)
	seedProperty(t, mem, "A12", models.PropertyAvailable)

	reply := r.Execute(context.Background(), "rename_property", []string{"A12", "LOFT1"})
	assert.Contains(t, reply, "A12 renamed to LOFT1")

	reply = r.Execute(context.Background(), "available", nil)
	assert.Contains(t, reply, "LOFT1")
}

func TestCancelBookingCommandValidatesID(t *testing.T) {
	r, _ := newTestRegistry(t)

	reply := r.Execute(context.Background(), "cancel_booking", []string{"not-a-uuid"})
	assert.Contains(t, reply, "invalid booking id")
}

func TestEditBookingCommand(t *testing.T) {
	r, mem := newTestRegistry(t)
	prop := seedProperty(t, mem, "A12", models.PropertyOccupied)
	booking := models.Booking{
		ID:           uuid.New(),
		PropertyCode: prop.Code,
		PropertyID:   &prop.ID,
		GuestName:    "Old Name",
		CheckinDate:  time.Now(),
		Status:       models.BookingActive,
	}
	require.NoError(t, mem.CreateBooking(context.Background(), &booking))

	reply := r.Execute(context.Background(), "edit_booking", []string{booking.ID.String(), "guest=New Name", "platform=Airbnb"})
	assert.Contains(t, reply, "New Name")

	updated, err := mem.GetBookingByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.GuestName)
	assert.Equal(t, "Airbnb", updated.Platform)
}

func TestBookingHistoryCommand(t *testing.T) {
	r, mem := newTestRegistry(t)
	prop := seedProperty(t, mem, "A12", models.PropertyAvailable)
	for _, guest := range []string{"First", "Second"} {
		booking := models.Booking{
			ID:           uuid.New(),
			PropertyCode: prop.Code,
			GuestName:    guest,
			CheckinDate:  time.Now(),
			Status:       models.BookingDeparted,
		}
		require.NoError(t, mem.CreateBooking(context.Background(), &booking))
	}

	reply := r.Execute(context.Background(), "booking_history", []string{"A12"})
	assert.Contains(t, reply, "First")
	assert.Contains(t, reply, "Second")
}

func TestDailyRevenueCommand(t *testing.T) {
	r, mem := newTestRegistry(t)
	prop := seedProperty(t, mem, "A12", models.PropertyOccupied)
	day := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	booking := models.Booking{
		ID:           uuid.New(),
		PropertyCode: prop.Code,
		PropertyID:   &prop.ID,
		GuestName:    "Guest",
		CheckinDate:  day,
		DuePayment:   "120 EUR",
		Status:       models.BookingActive,
	}
	require.NoError(t, mem.CreateBooking(context.Background(), &booking))

	reply := r.Execute(context.Background(), "daily_revenue", []string{"2026-08-30"})
	assert.Contains(t, reply, "120 EUR")
	assert.Contains(t, reply, "Total: 120.00")
}

func TestDailyRevenueDefaultsToServiceClockDay(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2023, 5, 10, 9, 30, 0, 0, time.UTC))
	r, mem := newTestRegistryWithClock(t, clock)
	prop := seedProperty(t, mem, "A12", models.PropertyOccupied)
	booking := models.Booking{
		ID:           uuid.New(),
		PropertyCode: prop.Code,
		PropertyID:   &prop.ID,
		GuestName:    "Guest",
		CheckinDate:  clock.Now(),
		DuePayment:   "80 EUR",
		Status:       models.BookingActive,
	}
	require.NoError(t, mem.CreateBooking(context.Background(), &booking))

	reply := r.Execute(context.Background(), "daily_revenue", nil)
	assert.Contains(t, reply, "2023-05-10")
	assert.Contains(t, reply, "80 EUR")
}
