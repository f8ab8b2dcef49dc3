package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jafarov01/property-management-bot/internal/cache"
	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/lifecycle"
	"github.com/jafarov01/property-management-bot/internal/models"
	"github.com/jafarov01/property-management-bot/internal/notify"
	"github.com/jafarov01/property-management-bot/internal/store"
)

// CheckinRequest is one guest arrival to register.
type CheckinRequest struct {
	PropertyCode string
	GuestName    string
	Platform     string
	DuePayment   string
	CheckinDate  time.Time
}

// CheckinOutcome reports how an arrival was registered. Conflict is true
// when the property was not available and the booking parked as
// PENDING_RELOCATION.
type CheckinOutcome struct {
	Booking  models.Booking
	Property models.Property
	Conflict bool
}

// Checkin registers one arrival. An available property takes the guest
// directly; anything else parks the booking pending relocation and raises
// a conflict notification with resolution actions.
func (s *Service) Checkin(ctx context.Context, req CheckinRequest) (*CheckinOutcome, error) {
	code := normalizeCode(req.PropertyCode)
	if code == "" {
		return nil, failure.Validationf("property code is required")
	}
	if strings.TrimSpace(req.GuestName) == "" {
		return nil, failure.Validationf("guest name is required")
	}
	if req.CheckinDate.IsZero() {
		req.CheckinDate = s.now()
	}

	var outcome CheckinOutcome
	err := s.store.Transact(ctx, func(tx store.Store) error {
		prop, err := tx.GetPropertyByCodeForUpdate(ctx, code)
		if failure.IsNotFound(err) {
			prop = &models.Property{ID: uuid.New(), Code: code, Status: models.PropertyAvailable}
			if err := tx.CreateProperty(ctx, prop); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		booking := models.Booking{
			ID:           uuid.New(),
			PropertyCode: prop.Code,
			GuestName:    strings.TrimSpace(req.GuestName),
			Platform:     req.Platform,
			CheckinDate:  req.CheckinDate,
			DuePayment:   req.DuePayment,
		}

		if prop.Status == models.PropertyAvailable {
			next, err := lifecycle.TransitionProperty(prop.Status, lifecycle.PropertyCheckin)
			if err != nil {
				return err
			}
			prop.Status = next
			booking.Status = models.BookingActive
			booking.PropertyID = &prop.ID
			if err := tx.SaveProperty(ctx, prop); err != nil {
				return err
			}
		} else {
			booking.Status = models.BookingPendingRelocation
		}

		if err := tx.CreateBooking(ctx, &booking); err != nil {
			return err
		}
		outcome = CheckinOutcome{Booking: booking, Property: *prop, Conflict: booking.Status == models.BookingPendingRelocation}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateListings(ctx)
	s.indexBooking(ctx, &outcome.Booking)

	if outcome.Conflict {
		s.emit(ctx, notify.Event{
			Topic: notify.TopicIssues,
			Text: fmt.Sprintf("Overbooking at %s: %s arrived but the property is %s. Choose a resolution.",
				outcome.Property.Code, outcome.Booking.GuestName, outcome.Property.Status),
			Actions: []notify.Action{
				{Label: "Show available", Command: "show_available"},
				{Label: "Swap guests", Command: "swap:" + outcome.Property.Code},
				{Label: "Cancel new booking", Command: "cancel_pending:" + outcome.Property.Code},
				{Label: "Relocate", Command: "relocate:" + outcome.Property.Code},
			},
		})
	}
	return &outcome, nil
}

// ProcessCheckinList parses a pasted daily arrival list and registers each
// entry, returning a human-readable receipt.
func (s *Service) ProcessCheckinList(ctx context.Context, raw string) (string, error) {
	today := s.now()
	entries, err := s.parser.ParseCheckinList(ctx, raw, today)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No check-ins found in the list.", nil
	}

	var lines []string
	for _, entry := range entries {
		outcome, err := s.Checkin(ctx, CheckinRequest{
			PropertyCode: entry.PropertyCode,
			GuestName:    entry.GuestName,
			Platform:     entry.Platform,
			DuePayment:   entry.DuePayment,
			CheckinDate:  today,
		})
		switch {
		case err != nil:
			lines = append(lines, fmt.Sprintf("%s: FAILED (%s)", entry.PropertyCode, userMessage(err)))
		case outcome.Conflict:
			lines = append(lines, fmt.Sprintf("%s: CONFLICT, %s parked pending relocation", outcome.Property.Code, outcome.Booking.GuestName))
		default:
			lines = append(lines, fmt.Sprintf("%s: %s checked in", outcome.Property.Code, outcome.Booking.GuestName))
		}
	}

	receipt := fmt.Sprintf("Check-in list processed (%d entries):\n%s", len(entries), strings.Join(lines, "\n"))
	s.emit(ctx, notify.Event{Topic: notify.TopicGeneral, Text: receipt})
	return receipt, nil
}

// ProcessCleaningList parses a pasted cleaning list and marks each listed
// property as departing: the property goes to PENDING_CLEANING and its
// active booking departs with checkout the day after the list date. A
// one-shot sweep is scheduled so late lists still release the properties.
func (s *Service) ProcessCleaningList(ctx context.Context, raw string) (string, error) {
	codes, err := s.parser.ParseCleaningList(ctx, raw)
	if err != nil {
		return "", err
	}
	if len(codes) == 0 {
		return "No properties found in the cleaning list.", nil
	}

	checkout := s.now().AddDate(0, 0, 1)
	var cleaned, warnings []string
	for _, rawCode := range codes {
		code := normalizeCode(rawCode)
		err := s.store.Transact(ctx, func(tx store.Store) error {
			prop, err := tx.GetPropertyByCodeForUpdate(ctx, code)
			if err != nil {
				return err
			}
			next, err := lifecycle.TransitionProperty(prop.Status, lifecycle.PropertyCheckout)
			if err != nil {
				return err
			}

			booking, err := tx.GetActiveBookingForProperty(ctx, prop.ID)
			if err != nil && !failure.IsNotFound(err) {
				return err
			}
			if booking != nil {
				booking, err = tx.GetBookingByIDForUpdate(ctx, booking.ID)
				if err != nil {
					return err
				}
				if booking.Status != models.BookingActive {
					return failure.StateConflictf("booking for %s is no longer active", booking.GuestName)
				}
				nextBooking, err := lifecycle.TransitionBooking(booking.Status, lifecycle.BookingCheckout)
				if err != nil {
					return err
				}
				booking.Status = nextBooking
				checkoutCopy := checkout
				booking.CheckoutDate = &checkoutCopy
				if err := tx.SaveBooking(ctx, booking); err != nil {
					return err
				}
			}

			prop.Status = next
			return tx.SaveProperty(ctx, prop)
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %s", code, userMessage(err)))
			continue
		}
		cleaned = append(cleaned, code)
	}

	s.invalidateListings(ctx)
	s.scheduleLateCleaningSweep(ctx)

	var b strings.Builder
	fmt.Fprintf(&b, "Cleaning list received: %d properties marked for cleaning.", len(cleaned))
	if len(cleaned) > 0 {
		fmt.Fprintf(&b, "\nMarked: %s", strings.Join(cleaned, ", "))
	}
	for _, warning := range warnings {
		fmt.Fprintf(&b, "\nWarning: %s", warning)
	}
	receipt := b.String()
	s.emit(ctx, notify.Event{Topic: notify.TopicGeneral, Text: receipt})
	return receipt, nil
}

// scheduleLateCleaningSweep arms a one-shot release of PENDING_CLEANING
// properties shortly after a cleaning list arrives, covering lists that
// land after the nightly sweep already ran.
func (s *Service) scheduleLateCleaningSweep(ctx context.Context) {
	if s.sched == nil {
		return
	}
	at := s.clock.Now().Add(s.jobs.LateCleaningDelay)
	name := fmt.Sprintf("late-cleaning-%d", at.Unix())
	err := s.sched.RegisterOneShot(name, at, func() {
		if _, err := s.ReleaseCleanedProperties(context.Background()); err != nil {
			log.Error().Err(err).Msg("late cleaning sweep failed")
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to schedule late cleaning sweep")
	}
}

// ReleaseCleanedProperties moves every PENDING_CLEANING property to
// AVAILABLE in one transaction and returns the released codes. An empty
// sweep is silent.
func (s *Service) ReleaseCleanedProperties(ctx context.Context) ([]string, error) {
	var released []string
	err := s.store.Transact(ctx, func(tx store.Store) error {
		props, err := tx.ListPropertiesByStatusForUpdate(ctx, models.PropertyPendingCleaning)
		if err != nil {
			return err
		}
		if len(props) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(props))
		for _, prop := range props {
			if _, err := lifecycle.TransitionProperty(prop.Status, lifecycle.PropertyMidnightSweep); err != nil {
				return err
			}
			ids = append(ids, prop.ID)
			released = append(released, prop.Code)
		}
		return tx.UpdatePropertyStatusByIDs(ctx, ids, models.PropertyAvailable)
	})
	if err != nil {
		return nil, err
	}

	if len(released) > 0 {
		sort.Strings(released)
		s.invalidateListings(ctx)
		s.emit(ctx, notify.Event{
			Topic: notify.TopicGeneral,
			Text:  fmt.Sprintf("Cleaning sweep: %d properties back to AVAILABLE (%s).", len(released), strings.Join(released, ", ")),
		})
	}
	return released, nil
}

// EarlyCheckout departs the active guest now and sends the property to
// cleaning.
func (s *Service) EarlyCheckout(ctx context.Context, propertyCode string) (*models.Property, error) {
	code := normalizeCode(propertyCode)
	var result models.Property
	err := s.store.Transact(ctx, func(tx store.Store) error {
		prop, err := tx.GetPropertyByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		next, err := lifecycle.TransitionProperty(prop.Status, lifecycle.PropertyEarlyCheckout)
		if err != nil {
			return err
		}

		booking, err := tx.GetActiveBookingForProperty(ctx, prop.ID)
		if err != nil && !failure.IsNotFound(err) {
			return err
		}
		if booking != nil {
			booking, err = tx.GetBookingByIDForUpdate(ctx, booking.ID)
			if err != nil {
				return err
			}
			if booking.Status != models.BookingActive {
				return failure.StateConflictf("booking for %s is no longer active", booking.GuestName)
			}
			nextBooking, err := lifecycle.TransitionBooking(booking.Status, lifecycle.BookingCheckout)
			if err != nil {
				return err
			}
			booking.Status = nextBooking
			now := s.now()
			booking.CheckoutDate = &now
			if err := tx.SaveBooking(ctx, booking); err != nil {
				return err
			}
		}

		prop.Status = next
		if err := tx.SaveProperty(ctx, prop); err != nil {
			return err
		}
		result = *prop
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return &result, nil
}

// SetClean marks one property cleaned and available again.
func (s *Service) SetClean(ctx context.Context, propertyCode string) (*models.Property, error) {
	return s.applyPropertyEvent(ctx, propertyCode, lifecycle.PropertyCleaned)
}

// BlockProperty takes a property out of service for maintenance. Blocking
// an occupied property is rejected.
func (s *Service) BlockProperty(ctx context.Context, propertyCode, reason string) (*models.Property, error) {
	code := normalizeCode(propertyCode)
	var result models.Property
	err := s.store.Transact(ctx, func(tx store.Store) error {
		prop, err := tx.GetPropertyByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		next, err := lifecycle.TransitionProperty(prop.Status, lifecycle.PropertyBlock)
		if err != nil {
			return err
		}
		prop.Status = next
		if reason != "" {
			prop.Notes = reason
		}
		if err := tx.SaveProperty(ctx, prop); err != nil {
			return err
		}
		result = *prop
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return &result, nil
}

// UnblockProperty returns a blocked property to service.
func (s *Service) UnblockProperty(ctx context.Context, propertyCode string) (*models.Property, error) {
	return s.applyPropertyEvent(ctx, propertyCode, lifecycle.PropertyUnblock)
}

func (s *Service) applyPropertyEvent(ctx context.Context, propertyCode string, event lifecycle.PropertyEvent) (*models.Property, error) {
	code := normalizeCode(propertyCode)
	var result models.Property
	err := s.store.Transact(ctx, func(tx store.Store) error {
		prop, err := tx.GetPropertyByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		next, err := lifecycle.TransitionProperty(prop.Status, event)
		if err != nil {
			return err
		}
		prop.Status = next
		if err := tx.SaveProperty(ctx, prop); err != nil {
			return err
		}
		result = *prop
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return &result, nil
}

// RenameProperty changes a property code and rewrites the historical code
// label on every booking that references it, so history reads under the
// new name.
func (s *Service) RenameProperty(ctx context.Context, oldCode, newCode string) error {
	from := normalizeCode(oldCode)
	to := normalizeCode(newCode)
	if to == "" {
		return failure.Validationf("new property code is required")
	}
	if from == to {
		return failure.Validationf("old and new codes are the same")
	}

	err := s.store.Transact(ctx, func(tx store.Store) error {
		if _, err := tx.GetPropertyByCode(ctx, to); err == nil {
			return failure.Validationf("property %s already exists", to)
		} else if !failure.IsNotFound(err) {
			return err
		}

		prop, err := tx.GetPropertyByCodeForUpdate(ctx, from)
		if err != nil {
			return err
		}
		prop.Code = to
		if err := tx.SaveProperty(ctx, prop); err != nil {
			return err
		}
		return tx.RewriteBookingPropertyCode(ctx, from, to)
	})
	if err != nil {
		return err
	}
	s.invalidateListings(ctx)
	return nil
}

// CancelBooking cancels an active or pending booking. Cancelling the
// occupying booking frees the property directly; the stay never happened.
func (s *Service) CancelBooking(ctx context.Context, bookingID uuid.UUID) error {
	err := s.store.Transact(ctx, func(tx store.Store) error {
		// Lock order is property first, then booking, same as every other
		// mutating flow, so concurrent checkouts cannot deadlock with a
		// cancel.
		booking, err := tx.GetBookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if lifecycle.Occupies(booking.Status) && booking.PropertyID != nil {
			prop, err := tx.GetPropertyByCodeForUpdate(ctx, booking.PropertyCode)
			if err != nil {
				return err
			}
			booking, err = tx.GetBookingByIDForUpdate(ctx, bookingID)
			if err != nil {
				return err
			}
			next, err := lifecycle.TransitionBooking(booking.Status, lifecycle.BookingCancel)
			if err != nil {
				return err
			}
			if lifecycle.Occupies(booking.Status) {
				nextProp, err := lifecycle.TransitionProperty(prop.Status, lifecycle.PropertyVacated)
				if err != nil {
					return err
				}
				prop.Status = nextProp
				if err := tx.SaveProperty(ctx, prop); err != nil {
					return err
				}
			}
			booking.Status = next
			return tx.SaveBooking(ctx, booking)
		}

		booking, err = tx.GetBookingByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		next, err := lifecycle.TransitionBooking(booking.Status, lifecycle.BookingCancel)
		if err != nil {
			return err
		}
		booking.Status = next
		return tx.SaveBooking(ctx, booking)
	})
	if err != nil {
		return err
	}
	s.invalidateListings(ctx)
	return nil
}

// BookingEdits are the operator-editable booking fields. Nil means keep.
type BookingEdits struct {
	GuestName   *string
	Platform    *string
	DuePayment  *string
	CheckinDate *time.Time
}

// EditBooking updates booking details in place.
func (s *Service) EditBooking(ctx context.Context, bookingID uuid.UUID, edits BookingEdits) (*models.Booking, error) {
	var result models.Booking
	err := s.store.Transact(ctx, func(tx store.Store) error {
		booking, err := tx.GetBookingByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if edits.GuestName != nil {
			if strings.TrimSpace(*edits.GuestName) == "" {
				return failure.Validationf("guest name cannot be empty")
			}
			booking.GuestName = strings.TrimSpace(*edits.GuestName)
		}
		if edits.Platform != nil {
			booking.Platform = *edits.Platform
		}
		if edits.DuePayment != nil {
			booking.DuePayment = *edits.DuePayment
		}
		if edits.CheckinDate != nil {
			booking.CheckinDate = *edits.CheckinDate
		}
		if err := tx.SaveBooking(ctx, booking); err != nil {
			return err
		}
		result = *booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.indexBooking(ctx, &result)
	return &result, nil
}

// LogIssue records a maintenance issue and notifies the issues channel.
func (s *Service) LogIssue(ctx context.Context, propertyCode, description string) error {
	code := normalizeCode(propertyCode)
	if strings.TrimSpace(description) == "" {
		return failure.Validationf("issue description is required")
	}

	var prop models.Property
	err := s.store.Transact(ctx, func(tx store.Store) error {
		found, err := tx.GetPropertyByCode(ctx, code)
		if err != nil {
			return err
		}
		prop = *found
		return tx.CreateIssue(ctx, &models.Issue{
			ID:          uuid.New(),
			PropertyID:  prop.ID,
			Description: strings.TrimSpace(description),
		})
	})
	if err != nil {
		return err
	}

	s.emit(ctx, notify.Event{
		Topic: notify.TopicIssues,
		Text:  fmt.Sprintf("Issue logged at %s: %s", prop.Code, strings.TrimSpace(description)),
	})
	return nil
}

// PropertyOverview is everything an operator sees for one property.
type PropertyOverview struct {
	Property      models.Property
	ActiveBooking *models.Booking
	Issues        []models.Issue
}

// CheckProperty returns the current state of one property.
func (s *Service) CheckProperty(ctx context.Context, propertyCode string) (*PropertyOverview, error) {
	code := normalizeCode(propertyCode)
	prop, err := s.store.GetPropertyByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	overview := PropertyOverview{Property: *prop}
	booking, err := s.store.GetActiveBookingForProperty(ctx, prop.ID)
	if err != nil && !failure.IsNotFound(err) {
		return nil, err
	}
	overview.ActiveBooking = booking

	issues, err := s.store.ListIssuesForProperty(ctx, prop.ID)
	if err != nil {
		return nil, err
	}
	overview.Issues = issues
	return &overview, nil
}

// StatusSummary returns per-status property counts, cached briefly.
func (s *Service) StatusSummary(ctx context.Context) (map[models.PropertyStatus]int64, error) {
	var counts map[models.PropertyStatus]int64
	if ok, err := s.cache.Get(ctx, cache.StatusSummaryKey, &counts); err != nil {
		log.Warn().Err(err).Msg("status summary cache read failed")
	} else if ok {
		return counts, nil
	}

	counts, err := s.store.CountPropertiesByStatus(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.StatusSummaryKey, counts); err != nil {
		log.Warn().Err(err).Msg("status summary cache write failed")
	}
	return counts, nil
}

// AvailableProperties lists AVAILABLE property codes, cached briefly.
func (s *Service) AvailableProperties(ctx context.Context) ([]string, error) {
	var codes []string
	if ok, err := s.cache.Get(ctx, cache.AvailableListKey, &codes); err != nil {
		log.Warn().Err(err).Msg("available list cache read failed")
	} else if ok {
		return codes, nil
	}

	props, err := s.store.ListPropertiesByStatus(ctx, models.PropertyAvailable)
	if err != nil {
		return nil, err
	}
	codes = make([]string, 0, len(props))
	for _, prop := range props {
		codes = append(codes, prop.Code)
	}
	if err := s.cache.Set(ctx, cache.AvailableListKey, codes); err != nil {
		log.Warn().Err(err).Msg("available list cache write failed")
	}
	return codes, nil
}

// PropertiesByStatus lists properties in one status, uncached.
func (s *Service) PropertiesByStatus(ctx context.Context, status models.PropertyStatus) ([]models.Property, error) {
	return s.store.ListPropertiesByStatus(ctx, status)
}

// BookingHistory lists the most recent bookings labeled with a property
// code, newest first.
func (s *Service) BookingHistory(ctx context.Context, propertyCode string, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.ListBookingsByPropertyCode(ctx, normalizeCode(propertyCode), limit)
}

// GuestMatch is one result of a guest search.
type GuestMatch struct {
	GuestName    string
	PropertyCode string
	Platform     string
	Status       string
}

// FindGuest searches active bookings by guest name, fuzzily through
// Elasticsearch when available and by substring against the database
// otherwise.
func (s *Service) FindGuest(ctx context.Context, guestName string) ([]GuestMatch, error) {
	if strings.TrimSpace(guestName) == "" {
		return nil, failure.Validationf("guest name is required")
	}

	if s.search.Enabled() {
		hits, err := s.search.SearchGuests(ctx, guestName)
		if err == nil {
			matches := make([]GuestMatch, 0, len(hits))
			for _, hit := range hits {
				matches = append(matches, GuestMatch{
					GuestName:    hit.GuestName,
					PropertyCode: hit.PropertyCode,
					Platform:     hit.Platform,
					Status:       hit.Status,
				})
			}
			return matches, nil
		}
		log.Warn().Err(err).Msg("guest search via Elasticsearch failed, falling back to database")
	}

	bookings, err := s.store.SearchActiveBookingsByGuest(ctx, strings.TrimSpace(guestName))
	if err != nil {
		return nil, err
	}
	matches := make([]GuestMatch, 0, len(bookings))
	for _, booking := range bookings {
		matches = append(matches, GuestMatch{
			GuestName:    booking.GuestName,
			PropertyCode: booking.PropertyCode,
			Platform:     booking.Platform,
			Status:       string(booking.Status),
		})
	}
	return matches, nil
}

// RevenueLine is one booking's contribution to a day's revenue.
type RevenueLine struct {
	PropertyCode string
	GuestName    string
	DuePayment   string
	Amount       float64
}

// DailyRevenue sums the parseable due payments of bookings checking in on
// the given day. Unparseable amounts still appear as lines with a zero
// contribution.
func (s *Service) DailyRevenue(ctx context.Context, day time.Time) (float64, []RevenueLine, error) {
	bookings, err := s.store.ListBookingsByCheckinDate(ctx, day)
	if err != nil {
		return 0, nil, err
	}

	var total float64
	lines := make([]RevenueLine, 0, len(bookings))
	for _, booking := range bookings {
		if booking.Status == models.BookingCancelled {
			continue
		}
		amount := parseAmount(booking.DuePayment)
		total += amount
		lines = append(lines, RevenueLine{
			PropertyCode: booking.PropertyCode,
			GuestName:    booking.GuestName,
			DuePayment:   booking.DuePayment,
			Amount:       amount,
		})
	}
	return total, lines, nil
}

// parseAmount extracts the first numeric token from a free-form payment
// note like "120 EUR" or "HUF 45000".
func parseAmount(duePayment string) float64 {
	for _, token := range strings.Fields(duePayment) {
		cleaned := strings.Trim(token, ",")
		if amount, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return amount
		}
	}
	return 0
}

// RelocationHistory lists relocation audit rows, optionally filtered to
// one property code on either side of the move.
func (s *Service) RelocationHistory(ctx context.Context, propertyCode string, limit int) ([]models.Relocation, error) {
	if limit <= 0 {
		limit = 20
	}
	code := ""
	if strings.TrimSpace(propertyCode) != "" {
		code = normalizeCode(propertyCode)
	}
	return s.store.ListRelocations(ctx, code, limit)
}

// KnownCodes lists every property code, for fuzzy suggestions.
func (s *Service) KnownCodes(ctx context.Context) ([]string, error) {
	return s.store.ListPropertyCodes(ctx)
}

// emit sends a notification after a committed state change. Failures are
// logged and never propagate: the state change already happened.
func (s *Service) emit(ctx context.Context, event notify.Event) int64 {
	handle, err := s.emitter.Send(ctx, event)
	if err != nil {
		log.Error().Err(err).Str("topic", string(event.Topic)).Msg("notification delivery failed")
		return 0
	}
	return handle
}

func (s *Service) invalidateListings(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.StatusSummaryKey, cache.AvailableListKey); err != nil {
		log.Warn().Err(err).Msg("cache invalidation failed")
	}
}

func (s *Service) indexBooking(ctx context.Context, booking *models.Booking) {
	if !s.search.Enabled() {
		return
	}
	if err := s.search.IndexBooking(ctx, booking); err != nil {
		log.Warn().Err(err).Str("booking_id", booking.ID.String()).Msg("booking indexing failed")
	}
}

// userMessage renders an error for operator-facing receipts.
func userMessage(err error) string {
	var f *failure.Failure
	if errors.As(err, &f) {
		return f.UserMessage()
	}
	return "internal error"
}
