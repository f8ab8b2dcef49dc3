package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// PropertyStatus is the closed set of property occupancy states.
type PropertyStatus string

const (
	PropertyAvailable       PropertyStatus = "AVAILABLE"
	PropertyOccupied        PropertyStatus = "OCCUPIED"
	PropertyPendingCleaning PropertyStatus = "PENDING_CLEANING"
	PropertyMaintenance     PropertyStatus = "MAINTENANCE"
)

// BookingStatus is the closed set of booking states.
type BookingStatus string

const (
	BookingActive            BookingStatus = "ACTIVE"
	BookingDeparted          BookingStatus = "DEPARTED"
	BookingCancelled         BookingStatus = "CANCELLED"
	BookingPendingRelocation BookingStatus = "PENDING_RELOCATION"
)

// EmailAlertStatus is the closed set of alert states.
type EmailAlertStatus string

const (
	AlertOpen          EmailAlertStatus = "OPEN"
	AlertHandled       EmailAlertStatus = "HANDLED"
	AlertParsingFailed EmailAlertStatus = "PARSING_FAILED"
)

// Property is a single-occupancy rental unit. Rows are created on first
// relevant event and never physically deleted while referenced.
type Property struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	Code      string         `gorm:"not null;uniqueIndex" json:"code"`
	Status    PropertyStatus `gorm:"not null;index;default:AVAILABLE" json:"status"`
	Notes     string         `gorm:"type:text" json:"notes"`
	Bookings  []Booking      `gorm:"foreignKey:PropertyID" json:"-"`
	Issues    []Issue        `gorm:"foreignKey:PropertyID" json:"-"`
}

// Booking ties a guest to a property. PropertyCode is the historical label
// at time of booking and survives property renames only through an explicit
// rename operation that rewrites referencing rows; PropertyID is the live
// relation.
type Booking struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
	PropertyCode  string        `gorm:"not null;index" json:"property_code"`
	PropertyID    *uuid.UUID    `gorm:"type:uuid;index" json:"property_id"`
	GuestName     string        `gorm:"not null" json:"guest_name"`
	Platform      string        `json:"platform"`
	CheckinDate   time.Time     `gorm:"not null;index" json:"checkin_date"`
	CheckoutDate  *time.Time    `gorm:"index" json:"checkout_date"`
	DuePayment    string        `json:"due_payment"`
	Status        BookingStatus `gorm:"not null;index;default:ACTIVE" json:"status"`
	RemindersSent int           `gorm:"not null;default:0" json:"reminders_sent"`
	Property      *Property     `gorm:"foreignKey:PropertyID" json:"-"`
}

// Relocation is an append-only audit record of a guest move. Never mutated
// after creation.
type Relocation struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID            uuid.UUID `gorm:"type:uuid;not null;index" json:"booking_id"`
	GuestName            string    `gorm:"not null" json:"guest_name"`
	OriginalPropertyCode string    `gorm:"not null;index" json:"original_property_code"`
	NewPropertyCode      string    `gorm:"not null;index" json:"new_property_code"`
	RelocatedAt          time.Time `gorm:"autoCreateTime" json:"relocated_at"`
}

// Issue is a reported maintenance problem on a property.
type Issue struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PropertyID  uuid.UUID `gorm:"type:uuid;not null;index" json:"property_id"`
	ReportedAt  time.Time `gorm:"autoCreateTime" json:"reported_at"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Resolved    bool      `gorm:"not null;default:false" json:"resolved"`
}

// EmailAlert is an inbound mail event awaiting operator handling.
// ExternalMessageID is the idempotency key: re-ingesting the same source
// message is a no-op. DeliveryHandle is the outbound notification handle
// used for later in-place edits.
type EmailAlert struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	ExternalMessageID string           `gorm:"not null;uniqueIndex" json:"external_message_id"`
	Category          string           `gorm:"not null" json:"category"`
	Status            EmailAlertStatus `gorm:"not null;index;default:OPEN" json:"status"`
	Summary           string           `gorm:"type:text" json:"summary"`
	Body              string           `gorm:"type:text" json:"-"`
	GuestName         string           `json:"guest_name"`
	PropertyCode      string           `json:"property_code"`
	Platform          string           `json:"platform"`
	ReservationNumber string           `json:"reservation_number"`
	Deadline          string           `json:"deadline"`
	HandledBy         string           `json:"handled_by"`
	HandledAt         *time.Time       `json:"handled_at"`
	RemindersSent     int              `gorm:"not null;default:0" json:"reminders_sent"`
	DeliveryHandle    int64            `json:"delivery_handle"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Property{},
		&Booking{},
		&Relocation{},
		&Issue{},
		&EmailAlert{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
