package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/models"
)

// GormStore implements Store on top of gorm. Reads that do not need locks go
// to the read-only connection when one is configured.
type GormStore struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewGormStore creates a store over a write connection and an optional
// read-only connection. Pass the write connection twice when no replica
// exists.
func NewGormStore(db, readOnlyDB *gorm.DB) *GormStore {
	if readOnlyDB == nil {
		readOnlyDB = db
	}
	return &GormStore{db: db, readOnlyDB: readOnlyDB}
}

// Transact runs fn inside a single database transaction. The store passed to
// fn routes every read through the transaction so ForUpdate locks are held
// until commit.
func (s *GormStore) Transact(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, readOnlyDB: tx})
	})
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func notFoundOr(err error, notFound error, wrap string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return failure.Integrityf(err, "%s", wrap)
}

// CreateProperty inserts a new property row.
func (s *GormStore) CreateProperty(ctx context.Context, prop *models.Property) error {
	if prop.ID == uuid.Nil {
		prop.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(prop).Error; err != nil {
		return failure.Integrityf(err, "failed to create property %s", prop.Code)
	}
	return nil
}

// GetPropertyByCode fetches a property without locking it.
func (s *GormStore) GetPropertyByCode(ctx context.Context, code string) (*models.Property, error) {
	var prop models.Property
	err := s.readOnlyDB.WithContext(ctx).Where("code = ?", code).First(&prop).Error
	if err != nil {
		return nil, notFoundOr(err, failure.NotFoundf("property %s not found", code), "failed to get property by code")
	}
	return &prop, nil
}

// GetPropertyByCodeForUpdate fetches a property under an exclusive row lock.
func (s *GormStore) GetPropertyByCodeForUpdate(ctx context.Context, code string) (*models.Property, error) {
	var prop models.Property
	err := forUpdate(s.db.WithContext(ctx)).Where("code = ?", code).First(&prop).Error
	if err != nil {
		return nil, notFoundOr(err, failure.NotFoundf("property %s not found", code), "failed to lock property by code")
	}
	return &prop, nil
}

// SaveProperty persists all fields of an already-loaded property.
func (s *GormStore) SaveProperty(ctx context.Context, prop *models.Property) error {
	if err := s.db.WithContext(ctx).Save(prop).Error; err != nil {
		return failure.Integrityf(err, "failed to save property %s", prop.Code)
	}
	return nil
}

// ListPropertiesByStatus lists properties in a status, ordered by code.
func (s *GormStore) ListPropertiesByStatus(ctx context.Context, status models.PropertyStatus) ([]models.Property, error) {
	var props []models.Property
	err := s.readOnlyDB.WithContext(ctx).
		Where("status = ?", status).
		Order("code asc").
		Find(&props).Error
	if err != nil {
		return nil, failure.Integrityf(err, "failed to list properties by status %s", status)
	}
	return props, nil
}

// ListPropertiesByStatusForUpdate lists and locks every property in a status.
func (s *GormStore) ListPropertiesByStatusForUpdate(ctx context.Context, status models.PropertyStatus) ([]models.Property, error) {
	var props []models.Property
	err := forUpdate(s.db.WithContext(ctx)).
		Where("status = ?", status).
		Order("code asc").
		Find(&props).Error
	if err != nil {
		return nil, failure.Integrityf(err, "failed to lock properties by status %s", status)
	}
	return props, nil
}

// ListPropertyCodes returns every known property code.
func (s *GormStore) ListPropertyCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := s.readOnlyDB.WithContext(ctx).
		Model(&models.Property{}).
		Order("code asc").
		Pluck("code", &codes).Error
	if err != nil {
		return nil, failure.Integrityf(err, "failed to list property codes")
	}
	return codes, nil
}

// CountPropertiesByStatus returns row counts grouped by status.
func (s *GormStore) CountPropertiesByStatus(ctx context.Context) (map[models.PropertyStatus]int64, error) {
	var rows []struct {
		Status models.PropertyStatus
		Total  int64
	}
	err := s.readOnlyDB.WithContext(ctx).
		Model(&models.Property{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, failure.Integrityf(err, "failed to count properties by status")
	}
	counts := make(map[models.PropertyStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// UpdatePropertyStatusByIDs bulk-updates the status of the given properties.
func (s *GormStore) UpdatePropertyStatusByIDs(ctx context.Context, ids []uuid.UUID, status models.PropertyStatus) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("id IN ?", ids).
		Update("status", status).Error
	if err != nil {
		return failure.Integrityf(err, "failed to bulk update property status")
	}
	return nil
}

// CreateBooking inserts a new booking row.
func (s *GormStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(booking).Error; err != nil {
		return failure.Integrityf(err, "failed to create booking for %s", booking.GuestName)
	}
	return nil
}

// GetBookingByID fetches a booking without locking it.
func (s *GormStore) GetBookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := s.readOnlyDB.WithContext(ctx).First(&booking, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, failure.NotFoundf("booking %s not found", id), "failed to get booking by id")
	}
	return &booking, nil
}

// GetBookingByIDForUpdate fetches a booking under an exclusive row lock.
func (s *GormStore) GetBookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := forUpdate(s.db.WithContext(ctx)).First(&booking, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, failure.NotFoundf("booking %s not found", id), "failed to lock booking by id")
	}
	return &booking, nil
}

// SaveBooking persists all fields of an already-loaded booking.
func (s *GormStore) SaveBooking(ctx context.Context, booking *models.Booking) error {
	if err := s.db.WithContext(ctx).Save(booking).Error; err != nil {
		return failure.Integrityf(err, "failed to save booking %s", booking.ID)
	}
	return nil
}

// GetActiveBookingForProperty returns the newest ACTIVE booking on a property.
func (s *GormStore) GetActiveBookingForProperty(ctx context.Context, propertyID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := s.readOnlyDB.WithContext(ctx).
		Where("property_id = ? AND status = ?", propertyID, models.BookingActive).
		Order("created_at desc").
		First(&booking).Error
	if err != nil {
		return nil, notFoundOr(err, failure.NotFoundf("no active booking for property"), "failed to get active booking")
	}
	return &booking, nil
}

// GetLatestPendingRelocation returns the newest PENDING_RELOCATION booking
// labelled with the given property code.
func (s *GormStore) GetLatestPendingRelocation(ctx context.Context, propertyCode string) (*models.Booking, error) {
	var booking models.Booking
	err := s.readOnlyDB.WithContext(ctx).
		Where("property_code = ? AND status = ?", propertyCode, models.BookingPendingRelocation).
		Order("created_at desc").
		First(&booking).Error
	if err != nil {
		return nil, notFoundOr(err, failure.NotFoundf("no booking pending relocation for %s", propertyCode), "failed to get pending relocation")
	}
	return &booking, nil
}

// ListBookingsByPropertyCode lists a property's booking history, newest first.
func (s *GormStore) ListBookingsByPropertyCode(ctx context.Context, code string, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.readOnlyDB.WithContext(ctx).
		Where("property_code = ?", code).
		Order("checkin_date desc").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, failure.Integrityf(err, "failed to list bookings for %s", code)
	}
	return bookings, nil
}

// ListBookingsByCheckinDate lists bookings with a check-in on the given day.
func (s *GormStore) ListBookingsByCheckinDate(ctx context.Context, day time.Time) ([]models.Booking, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var bookings []models.Booking
	err := s.readOnlyDB.WithContext(ctx).
		Where("checkin_date >= ? AND checkin_date < ?", start, end).
		Find(&bookings).Error
	if err != nil {
		return nil, failure.Integrityf(err, "failed to list bookings by check-in date")
	}
	return bookings, nil
}

// SearchActiveBookingsByGuest finds ACTIVE bookings whose guest name contains
// the given fragment, case-insensitively.
func (s *GormStore) SearchActiveBookingsByGuest(ctx context.Context, guestName string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.readOnlyDB.WithContext(ctx).
		Where("guest_name ILIKE ? AND status = ?", "%"+guestName+"%", models.BookingActive).
		Find(&bookings).Error
	if err != nil {
		return nil, failure.Integrityf(err, "failed to search bookings by guest")
	}
	return bookings, nil
}

// ListStalePendingRelocations lists PENDING_RELOCATION bookings created
// before olderThan that have not yet been reminded about.
func (s *GormStore) ListStalePendingRelocations(ctx context.Context, olderThan time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.readOnlyDB.WithContext(ctx).
		Where("status = ? AND reminders_sent = 0 AND created_at <= ?", models.BookingPendingRelocation, olderThan).
		Find(&bookings).Error
	if err != nil {
		return nil, failure.Integrityf(err, "failed to list stale pending relocations")
	}
	return bookings, nil
}

// RewriteBookingPropertyCode rewrites the historical property-code label on
// every referencing booking. Runs inside the caller's rename transaction.
func (s *GormStore) RewriteBookingPropertyCode(ctx context.Context, oldCode, newCode string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("property_code = ?", oldCode).
		Update("property_code", newCode).Error
	if err != nil {
		return failure.Integrityf(err, "failed to rewrite booking codes %s -> %s", oldCode, newCode)
	}
	return nil
}

// CreateRelocation appends a relocation audit row.
func (s *GormStore) CreateRelocation(ctx context.Context, relocation *models.Relocation) error {
	if relocation.ID == uuid.Nil {
		relocation.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(relocation).Error; err != nil {
		return failure.Integrityf(err, "failed to create relocation for booking %s", relocation.BookingID)
	}
	return nil
}

// ListRelocations lists recent relocations, optionally filtered by a property
// code appearing on either side of the move.
func (s *GormStore) ListRelocations(ctx context.Context, propertyCode string, limit int) ([]models.Relocation, error) {
	q := s.readOnlyDB.WithContext(ctx).Order("relocated_at desc").Limit(limit)
	if propertyCode != "" {
		q = q.Where("original_property_code = ? OR new_property_code = ?", propertyCode, propertyCode)
	}
	var relocations []models.Relocation
	if err := q.Find(&relocations).Error; err != nil {
		return nil, failure.Integrityf(err, "failed to list relocations")
	}
	return relocations, nil
}

// CreateIssue inserts a new issue row.
func (s *GormStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == uuid.Nil {
		issue.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(issue).Error; err != nil {
		return failure.Integrityf(err, "failed to create issue for property %s", issue.PropertyID)
	}
	return nil
}

// ListIssuesForProperty lists all issues reported for a property.
func (s *GormStore) ListIssuesForProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Issue, error) {
	var issues []models.Issue
	err := s.readOnlyDB.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("reported_at desc").
		Find(&issues).Error
	if err != nil {
		return nil, failure.Integrityf(err, "failed to list issues")
	}
	return issues, nil
}

// CreateAlert inserts a new email alert row.
func (s *GormStore) CreateAlert(ctx context.Context, alert *models.EmailAlert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return failure.Integrityf(err, "failed to create alert %s", alert.ExternalMessageID)
	}
	return nil
}

// GetAlertByID fetches an alert without locking it.
func (s *GormStore) GetAlertByID(ctx context.Context, id uuid.UUID) (*models.EmailAlert, error) {
	var alert models.EmailAlert
	err := s.readOnlyDB.WithContext(ctx).First(&alert, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, failure.NotFoundf("alert %s not found", id), "failed to get alert by id")
	}
	return &alert, nil
}

// GetAlertByIDForUpdate fetches an alert under an exclusive row lock.
func (s *GormStore) GetAlertByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.EmailAlert, error) {
	var alert models.EmailAlert
	err := forUpdate(s.db.WithContext(ctx)).First(&alert, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, failure.NotFoundf("alert %s not found", id), "failed to lock alert by id")
	}
	return &alert, nil
}

// GetAlertByExternalMessageID looks an alert up by its idempotency key.
func (s *GormStore) GetAlertByExternalMessageID(ctx context.Context, externalMessageID string) (*models.EmailAlert, error) {
	var alert models.EmailAlert
	err := s.readOnlyDB.WithContext(ctx).Where("external_message_id = ?", externalMessageID).First(&alert).Error
	if err != nil {
		return nil, notFoundOr(err, failure.NotFoundf("alert for message %s not found", externalMessageID), "failed to get alert by external id")
	}
	return &alert, nil
}

// SaveAlert persists all fields of an already-loaded alert.
func (s *GormStore) SaveAlert(ctx context.Context, alert *models.EmailAlert) error {
	if err := s.db.WithContext(ctx).Save(alert).Error; err != nil {
		return failure.Integrityf(err, "failed to save alert %s", alert.ID)
	}
	return nil
}

// ListStaleOpenAlerts lists OPEN alerts created before olderThan that have
// not yet been reminded about.
func (s *GormStore) ListStaleOpenAlerts(ctx context.Context, olderThan time.Time) ([]models.EmailAlert, error) {
	var alerts []models.EmailAlert
	err := s.readOnlyDB.WithContext(ctx).
		Where("status = ? AND reminders_sent = 0 AND created_at <= ?", models.AlertOpen, olderThan).
		Find(&alerts).Error
	if err != nil {
		return nil, failure.Integrityf(err, "failed to list stale open alerts")
	}
	return alerts, nil
}
