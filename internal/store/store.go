// Package store is the durable entity store for properties, bookings,
// relocations, issues and email alerts. The Store interface is what services
// program against; the gorm implementation backs it with Postgres and the
// storetest package provides an in-memory implementation for tests.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jafarov01/property-management-bot/internal/models"
)

// Store gives transactional access to all entities. The ForUpdate variants
// acquire a row-scoped exclusive lock for the duration of the enclosing
// transaction; plain reads do not.
type Store interface {
	// Transact runs fn inside one transaction. Any error rolls the whole
	// operation back. Nested ForUpdate reads lock rows until commit.
	Transact(ctx context.Context, fn func(Store) error) error

	// Properties
	CreateProperty(ctx context.Context, prop *models.Property) error
	GetPropertyByCode(ctx context.Context, code string) (*models.Property, error)
	GetPropertyByCodeForUpdate(ctx context.Context, code string) (*models.Property, error)
	SaveProperty(ctx context.Context, prop *models.Property) error
	ListPropertiesByStatus(ctx context.Context, status models.PropertyStatus) ([]models.Property, error)
	ListPropertiesByStatusForUpdate(ctx context.Context, status models.PropertyStatus) ([]models.Property, error)
	ListPropertyCodes(ctx context.Context) ([]string, error)
	CountPropertiesByStatus(ctx context.Context) (map[models.PropertyStatus]int64, error)
	UpdatePropertyStatusByIDs(ctx context.Context, ids []uuid.UUID, status models.PropertyStatus) error

	// Bookings
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetBookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	SaveBooking(ctx context.Context, booking *models.Booking) error
	GetActiveBookingForProperty(ctx context.Context, propertyID uuid.UUID) (*models.Booking, error)
	GetLatestPendingRelocation(ctx context.Context, propertyCode string) (*models.Booking, error)
	ListBookingsByPropertyCode(ctx context.Context, code string, limit int) ([]models.Booking, error)
	ListBookingsByCheckinDate(ctx context.Context, day time.Time) ([]models.Booking, error)
	SearchActiveBookingsByGuest(ctx context.Context, guestName string) ([]models.Booking, error)
	ListStalePendingRelocations(ctx context.Context, olderThan time.Time) ([]models.Booking, error)
	RewriteBookingPropertyCode(ctx context.Context, oldCode, newCode string) error

	// Relocations (append-only)
	CreateRelocation(ctx context.Context, relocation *models.Relocation) error
	ListRelocations(ctx context.Context, propertyCode string, limit int) ([]models.Relocation, error)

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	ListIssuesForProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Issue, error)

	// Email alerts
	CreateAlert(ctx context.Context, alert *models.EmailAlert) error
	GetAlertByID(ctx context.Context, id uuid.UUID) (*models.EmailAlert, error)
	GetAlertByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.EmailAlert, error)
	GetAlertByExternalMessageID(ctx context.Context, externalMessageID string) (*models.EmailAlert, error)
	SaveAlert(ctx context.Context, alert *models.EmailAlert) error
	ListStaleOpenAlerts(ctx context.Context, olderThan time.Time) ([]models.EmailAlert, error)
}
