// Package storetest provides an in-memory Store for service and job tests.
// Transactions serialize on one mutex and roll back by snapshot, which is
// enough to exercise the same win-or-StateConflict behavior the Postgres
// row locks give in production.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/models"
	"github.com/jafarov01/property-management-bot/internal/store"
)

// Memory is an in-memory store.Store. The zero value is not usable; call New.
type Memory struct {
	mu   sync.Mutex
	data *tables
	// Now supplies creation timestamps; tests override it to control ages.
	Now func() time.Time
}

type tables struct {
	properties  map[uuid.UUID]models.Property
	bookings    map[uuid.UUID]models.Booking
	relocations []models.Relocation
	issues      []models.Issue
	alerts      map[uuid.UUID]models.EmailAlert
}

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{
		data: &tables{
			properties: make(map[uuid.UUID]models.Property),
			bookings:   make(map[uuid.UUID]models.Booking),
			alerts:     make(map[uuid.UUID]models.EmailAlert),
		},
		Now: time.Now,
	}
}

func (t *tables) snapshot() *tables {
	cp := &tables{
		properties:  make(map[uuid.UUID]models.Property, len(t.properties)),
		bookings:    make(map[uuid.UUID]models.Booking, len(t.bookings)),
		relocations: append([]models.Relocation(nil), t.relocations...),
		issues:      append([]models.Issue(nil), t.issues...),
		alerts:      make(map[uuid.UUID]models.EmailAlert, len(t.alerts)),
	}
	for k, v := range t.properties {
		cp.properties[k] = v
	}
	for k, v := range t.bookings {
		cp.bookings[k] = v
	}
	for k, v := range t.alerts {
		cp.alerts[k] = v
	}
	return cp
}

// Transact serializes all transactions and restores the pre-transaction
// snapshot when fn fails, so no partial application is observable.
func (m *Memory) Transact(ctx context.Context, fn func(store.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := m.data.snapshot()
	if err := fn(&txView{m: m}); err != nil {
		m.data = before
		return err
	}
	return nil
}

// txView exposes the store within a held transaction lock.
type txView struct {
	m *Memory
}

func (v *txView) Transact(ctx context.Context, fn func(store.Store) error) error {
	// Already inside a transaction; run in place.
	return fn(v)
}

// Locked helpers shared by the transactional and non-transactional paths.

func (m *Memory) locked(fn func(*txView) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&txView{m: m})
}

func (m *Memory) CreateProperty(ctx context.Context, prop *models.Property) error {
	return m.locked(func(v *txView) error { return v.CreateProperty(ctx, prop) })
}

func (v *txView) CreateProperty(ctx context.Context, prop *models.Property) error {
	if prop.ID == uuid.Nil {
		prop.ID = uuid.New()
	}
	if prop.CreatedAt.IsZero() {
		prop.CreatedAt = v.m.Now()
	}
	for _, existing := range v.m.data.properties {
		if existing.Code == prop.Code {
			return failure.Integrityf(nil, "property code %s already exists", prop.Code)
		}
	}
	v.m.data.properties[prop.ID] = *prop
	return nil
}

func (m *Memory) GetPropertyByCode(ctx context.Context, code string) (*models.Property, error) {
	var prop *models.Property
	err := m.locked(func(v *txView) error {
		var err error
		prop, err = v.GetPropertyByCode(ctx, code)
		return err
	})
	return prop, err
}

func (v *txView) GetPropertyByCode(ctx context.Context, code string) (*models.Property, error) {
	for _, prop := range v.m.data.properties {
		if prop.Code == code {
			cp := prop
			return &cp, nil
		}
	}
	return nil, failure.NotFoundf("property %s not found", code)
}

func (m *Memory) GetPropertyByCodeForUpdate(ctx context.Context, code string) (*models.Property, error) {
	return m.GetPropertyByCode(ctx, code)
}

func (v *txView) GetPropertyByCodeForUpdate(ctx context.Context, code string) (*models.Property, error) {
	return v.GetPropertyByCode(ctx, code)
}

func (m *Memory) SaveProperty(ctx context.Context, prop *models.Property) error {
	return m.locked(func(v *txView) error { return v.SaveProperty(ctx, prop) })
}

func (v *txView) SaveProperty(ctx context.Context, prop *models.Property) error {
	if _, ok := v.m.data.properties[prop.ID]; !ok {
		return failure.NotFoundf("property %s not found", prop.Code)
	}
	v.m.data.properties[prop.ID] = *prop
	return nil
}

func (m *Memory) ListPropertiesByStatus(ctx context.Context, status models.PropertyStatus) ([]models.Property, error) {
	var props []models.Property
	err := m.locked(func(v *txView) error {
		var err error
		props, err = v.ListPropertiesByStatus(ctx, status)
		return err
	})
	return props, err
}

func (v *txView) ListPropertiesByStatus(ctx context.Context, status models.PropertyStatus) ([]models.Property, error) {
	var props []models.Property
	for _, prop := range v.m.data.properties {
		if prop.Status == status {
			props = append(props, prop)
		}
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Code < props[j].Code })
	return props, nil
}

func (m *Memory) ListPropertiesByStatusForUpdate(ctx context.Context, status models.PropertyStatus) ([]models.Property, error) {
	return m.ListPropertiesByStatus(ctx, status)
}

func (v *txView) ListPropertiesByStatusForUpdate(ctx context.Context, status models.PropertyStatus) ([]models.Property, error) {
	return v.ListPropertiesByStatus(ctx, status)
}

func (m *Memory) ListPropertyCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := m.locked(func(v *txView) error {
		var err error
		codes, err = v.ListPropertyCodes(ctx)
		return err
	})
	return codes, err
}

func (v *txView) ListPropertyCodes(ctx context.Context) ([]string, error) {
	var codes []string
	for _, prop := range v.m.data.properties {
		codes = append(codes, prop.Code)
	}
	sort.Strings(codes)
	return codes, nil
}

func (m *Memory) CountPropertiesByStatus(ctx context.Context) (map[models.PropertyStatus]int64, error) {
	var counts map[models.PropertyStatus]int64
	err := m.locked(func(v *txView) error {
		var err error
		counts, err = v.CountPropertiesByStatus(ctx)
		return err
	})
	return counts, err
}

func (v *txView) CountPropertiesByStatus(ctx context.Context) (map[models.PropertyStatus]int64, error) {
	counts := make(map[models.PropertyStatus]int64)
	for _, prop := range v.m.data.properties {
		counts[prop.Status]++
	}
	return counts, nil
}

func (m *Memory) UpdatePropertyStatusByIDs(ctx context.Context, ids []uuid.UUID, status models.PropertyStatus) error {
	return m.locked(func(v *txView) error { return v.UpdatePropertyStatusByIDs(ctx, ids, status) })
}

func (v *txView) UpdatePropertyStatusByIDs(ctx context.Context, ids []uuid.UUID, status models.PropertyStatus) error {
	for _, id := range ids {
		if prop, ok := v.m.data.properties[id]; ok {
			prop.Status = status
			v.m.data.properties[id] = prop
		}
	}
	return nil
}

func (m *Memory) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return m.locked(func(v *txView) error { return v.CreateBooking(ctx, booking) })
}

func (v *txView) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = v.m.Now()
	}
	v.m.data.bookings[booking.ID] = *booking
	return nil
}

func (m *Memory) GetBookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking
	err := m.locked(func(v *txView) error {
		var err error
		booking, err = v.GetBookingByID(ctx, id)
		return err
	})
	return booking, err
}

func (v *txView) GetBookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	booking, ok := v.m.data.bookings[id]
	if !ok {
		return nil, failure.NotFoundf("booking %s not found", id)
	}
	cp := booking
	return &cp, nil
}

func (m *Memory) GetBookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return m.GetBookingByID(ctx, id)
}

func (v *txView) GetBookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return v.GetBookingByID(ctx, id)
}

func (m *Memory) SaveBooking(ctx context.Context, booking *models.Booking) error {
	return m.locked(func(v *txView) error { return v.SaveBooking(ctx, booking) })
}

func (v *txView) SaveBooking(ctx context.Context, booking *models.Booking) error {
	if _, ok := v.m.data.bookings[booking.ID]; !ok {
		return failure.NotFoundf("booking %s not found", booking.ID)
	}
	v.m.data.bookings[booking.ID] = *booking
	return nil
}

func (m *Memory) GetActiveBookingForProperty(ctx context.Context, propertyID uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking
	err := m.locked(func(v *txView) error {
		var err error
		booking, err = v.GetActiveBookingForProperty(ctx, propertyID)
		return err
	})
	return booking, err
}

func (v *txView) GetActiveBookingForProperty(ctx context.Context, propertyID uuid.UUID) (*models.Booking, error) {
	var newest *models.Booking
	for _, booking := range v.m.data.bookings {
		b := booking
		if b.PropertyID != nil && *b.PropertyID == propertyID && b.Status == models.BookingActive {
			if newest == nil || b.CreatedAt.After(newest.CreatedAt) {
				newest = &b
			}
		}
	}
	if newest == nil {
		return nil, failure.NotFoundf("no active booking for property")
	}
	cp := *newest
	return &cp, nil
}

func (m *Memory) GetLatestPendingRelocation(ctx context.Context, propertyCode string) (*models.Booking, error) {
	var booking *models.Booking
	err := m.locked(func(v *txView) error {
		var err error
		booking, err = v.GetLatestPendingRelocation(ctx, propertyCode)
		return err
	})
	return booking, err
}

func (v *txView) GetLatestPendingRelocation(ctx context.Context, propertyCode string) (*models.Booking, error) {
	var newest *models.Booking
	for _, booking := range v.m.data.bookings {
		b := booking
		if b.PropertyCode == propertyCode && b.Status == models.BookingPendingRelocation {
			if newest == nil || b.CreatedAt.After(newest.CreatedAt) {
				newest = &b
			}
		}
	}
	if newest == nil {
		return nil, failure.NotFoundf("no booking pending relocation for %s", propertyCode)
	}
	cp := *newest
	return &cp, nil
}

func (m *Memory) ListBookingsByPropertyCode(ctx context.Context, code string, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := m.locked(func(v *txView) error {
		var err error
		bookings, err = v.ListBookingsByPropertyCode(ctx, code, limit)
		return err
	})
	return bookings, err
}

func (v *txView) ListBookingsByPropertyCode(ctx context.Context, code string, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	for _, booking := range v.m.data.bookings {
		if booking.PropertyCode == code {
			bookings = append(bookings, booking)
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].CheckinDate.After(bookings[j].CheckinDate) })
	if limit > 0 && len(bookings) > limit {
		bookings = bookings[:limit]
	}
	return bookings, nil
}

func (m *Memory) ListBookingsByCheckinDate(ctx context.Context, day time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := m.locked(func(v *txView) error {
		var err error
		bookings, err = v.ListBookingsByCheckinDate(ctx, day)
		return err
	})
	return bookings, err
}

func (v *txView) ListBookingsByCheckinDate(ctx context.Context, day time.Time) ([]models.Booking, error) {
	y, mo, d := day.Date()
	var bookings []models.Booking
	for _, booking := range v.m.data.bookings {
		by, bm, bd := booking.CheckinDate.Date()
		if by == y && bm == mo && bd == d {
			bookings = append(bookings, booking)
		}
	}
	return bookings, nil
}

func (m *Memory) SearchActiveBookingsByGuest(ctx context.Context, guestName string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := m.locked(func(v *txView) error {
		var err error
		bookings, err = v.SearchActiveBookingsByGuest(ctx, guestName)
		return err
	})
	return bookings, err
}

func (v *txView) SearchActiveBookingsByGuest(ctx context.Context, guestName string) ([]models.Booking, error) {
	needle := strings.ToLower(guestName)
	var bookings []models.Booking
	for _, booking := range v.m.data.bookings {
		if booking.Status == models.BookingActive && strings.Contains(strings.ToLower(booking.GuestName), needle) {
			bookings = append(bookings, booking)
		}
	}
	return bookings, nil
}

func (m *Memory) ListStalePendingRelocations(ctx context.Context, olderThan time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := m.locked(func(v *txView) error {
		var err error
		bookings, err = v.ListStalePendingRelocations(ctx, olderThan)
		return err
	})
	return bookings, err
}

func (v *txView) ListStalePendingRelocations(ctx context.Context, olderThan time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	for _, booking := range v.m.data.bookings {
		if booking.Status == models.BookingPendingRelocation && booking.RemindersSent == 0 && !booking.CreatedAt.After(olderThan) {
			bookings = append(bookings, booking)
		}
	}
	return bookings, nil
}

func (m *Memory) RewriteBookingPropertyCode(ctx context.Context, oldCode, newCode string) error {
	return m.locked(func(v *txView) error { return v.RewriteBookingPropertyCode(ctx, oldCode, newCode) })
}

func (v *txView) RewriteBookingPropertyCode(ctx context.Context, oldCode, newCode string) error {
	for id, booking := range v.m.data.bookings {
		if booking.PropertyCode == oldCode {
			booking.PropertyCode = newCode
			v.m.data.bookings[id] = booking
		}
	}
	return nil
}

func (m *Memory) CreateRelocation(ctx context.Context, relocation *models.Relocation) error {
	return m.locked(func(v *txView) error { return v.CreateRelocation(ctx, relocation) })
}

func (v *txView) CreateRelocation(ctx context.Context, relocation *models.Relocation) error {
	if relocation.ID == uuid.Nil {
		relocation.ID = uuid.New()
	}
	if relocation.RelocatedAt.IsZero() {
		relocation.RelocatedAt = v.m.Now()
	}
	v.m.data.relocations = append(v.m.data.relocations, *relocation)
	return nil
}

func (m *Memory) ListRelocations(ctx context.Context, propertyCode string, limit int) ([]models.Relocation, error) {
	var relocations []models.Relocation
	err := m.locked(func(v *txView) error {
		var err error
		relocations, err = v.ListRelocations(ctx, propertyCode, limit)
		return err
	})
	return relocations, err
}

func (v *txView) ListRelocations(ctx context.Context, propertyCode string, limit int) ([]models.Relocation, error) {
	var relocations []models.Relocation
	for _, relocation := range v.m.data.relocations {
		if propertyCode == "" || relocation.OriginalPropertyCode == propertyCode || relocation.NewPropertyCode == propertyCode {
			relocations = append(relocations, relocation)
		}
	}
	sort.Slice(relocations, func(i, j int) bool { return relocations[i].RelocatedAt.After(relocations[j].RelocatedAt) })
	if limit > 0 && len(relocations) > limit {
		relocations = relocations[:limit]
	}
	return relocations, nil
}

func (m *Memory) CreateIssue(ctx context.Context, issue *models.Issue) error {
	return m.locked(func(v *txView) error { return v.CreateIssue(ctx, issue) })
}

func (v *txView) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == uuid.Nil {
		issue.ID = uuid.New()
	}
	if issue.ReportedAt.IsZero() {
		issue.ReportedAt = v.m.Now()
	}
	v.m.data.issues = append(v.m.data.issues, *issue)
	return nil
}

func (m *Memory) ListIssuesForProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Issue, error) {
	var issues []models.Issue
	err := m.locked(func(v *txView) error {
		var err error
		issues, err = v.ListIssuesForProperty(ctx, propertyID)
		return err
	})
	return issues, err
}

func (v *txView) ListIssuesForProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Issue, error) {
	var issues []models.Issue
	for _, issue := range v.m.data.issues {
		if issue.PropertyID == propertyID {
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

func (m *Memory) CreateAlert(ctx context.Context, alert *models.EmailAlert) error {
	return m.locked(func(v *txView) error { return v.CreateAlert(ctx, alert) })
}

func (v *txView) CreateAlert(ctx context.Context, alert *models.EmailAlert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = v.m.Now()
	}
	for _, existing := range v.m.data.alerts {
		if existing.ExternalMessageID == alert.ExternalMessageID {
			return failure.Integrityf(nil, "alert for message %s already exists", alert.ExternalMessageID)
		}
	}
	v.m.data.alerts[alert.ID] = *alert
	return nil
}

func (m *Memory) GetAlertByID(ctx context.Context, id uuid.UUID) (*models.EmailAlert, error) {
	var alert *models.EmailAlert
	err := m.locked(func(v *txView) error {
		var err error
		alert, err = v.GetAlertByID(ctx, id)
		return err
	})
	return alert, err
}

func (v *txView) GetAlertByID(ctx context.Context, id uuid.UUID) (*models.EmailAlert, error) {
	alert, ok := v.m.data.alerts[id]
	if !ok {
		return nil, failure.NotFoundf("alert %s not found", id)
	}
	cp := alert
	return &cp, nil
}

func (m *Memory) GetAlertByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.EmailAlert, error) {
	return m.GetAlertByID(ctx, id)
}

func (v *txView) GetAlertByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.EmailAlert, error) {
	return v.GetAlertByID(ctx, id)
}

func (m *Memory) GetAlertByExternalMessageID(ctx context.Context, externalMessageID string) (*models.EmailAlert, error) {
	var alert *models.EmailAlert
	err := m.locked(func(v *txView) error {
		var err error
		alert, err = v.GetAlertByExternalMessageID(ctx, externalMessageID)
		return err
	})
	return alert, err
}

func (v *txView) GetAlertByExternalMessageID(ctx context.Context, externalMessageID string) (*models.EmailAlert, error) {
	for _, alert := range v.m.data.alerts {
		if alert.ExternalMessageID == externalMessageID {
			cp := alert
			return &cp, nil
		}
	}
	return nil, failure.NotFoundf("alert for message %s not found", externalMessageID)
}

func (m *Memory) SaveAlert(ctx context.Context, alert *models.EmailAlert) error {
	return m.locked(func(v *txView) error { return v.SaveAlert(ctx, alert) })
}

func (v *txView) SaveAlert(ctx context.Context, alert *models.EmailAlert) error {
	if _, ok := v.m.data.alerts[alert.ID]; !ok {
		return failure.NotFoundf("alert %s not found", alert.ID)
	}
	v.m.data.alerts[alert.ID] = *alert
	return nil
}

func (m *Memory) ListStaleOpenAlerts(ctx context.Context, olderThan time.Time) ([]models.EmailAlert, error) {
	var alerts []models.EmailAlert
	err := m.locked(func(v *txView) error {
		var err error
		alerts, err = v.ListStaleOpenAlerts(ctx, olderThan)
		return err
	})
	return alerts, err
}

func (v *txView) ListStaleOpenAlerts(ctx context.Context, olderThan time.Time) ([]models.EmailAlert, error) {
	var alerts []models.EmailAlert
	for _, alert := range v.m.data.alerts {
		if alert.Status == models.AlertOpen && alert.RemindersSent == 0 && !alert.CreatedAt.After(olderThan) {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

var _ store.Store = (*Memory)(nil)
var _ store.Store = (*txView)(nil)
