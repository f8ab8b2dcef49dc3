// Package commands maps operator chat commands to service operations and
// renders the replies. Handlers return plain text; the transport decides
// how to deliver it.
package commands

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

	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/match"
	"github.com/jafarov01/property-management-bot/internal/models"
	"github.com/jafarov01/property-management-bot/internal/services"
)

// Handler executes one command with pre-split arguments.
type Handler func(ctx context.Context, args []string) (string, error)

// Command is one registered operator command.
type Command struct {
	Name    string
	Usage   string
	Summary string
	Handler Handler
}

// Registry dispatches operator commands.
type Registry struct {
	svc      *services.Service
	commands map[string]*Command
	order    []string
}

// NewRegistry builds the full command set over the operations core.
func NewRegistry(svc *services.Service) *Registry {
	r := &Registry{
		svc:      svc,
		commands: make(map[string]*Command),
	}
	r.registerAll()
	return r
}

func (r *Registry) add(name, usage, summary string, handler Handler) {
	r.commands[name] = &Command{Name: name, Usage: usage, Summary: summary, Handler: handler}
	r.order = append(r.order, name)
}

// Execute runs one command. Unknown property codes come back with a
// nearest-match suggestion; internal failures come back as a generic
// apology with the detail kept in the logs.
func (r *Registry) Execute(ctx context.Context, name string, args []string) string {
	cmd, ok := r.commands[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return fmt.Sprintf("Unknown command %q. Send 'help' for the command list.", name)
	}

	reply, err := cmd.Handler(ctx, args)
	if err == nil {
		return reply
	}

	switch failure.KindOf(err) {
	case failure.Validation:
		return fmt.Sprintf("%s\nUsage: %s", userMessage(err), cmd.Usage)
	case failure.InvalidTransition, failure.StateConflict:
		return userMessage(err)
	case failure.NotFound:
		return r.withSuggestion(ctx, err, args)
	case failure.ExternalService:
		return userMessage(err) + " Please try again."
	default:
		log.Error().Err(err).Str("command", cmd.Name).Msg("command failed")
		return "Something went wrong, the details are in the log."
	}
}

// withSuggestion appends a did-you-mean hint when the first argument is
// close to a known property code.
func (r *Registry) withSuggestion(ctx context.Context, err error, args []string) string {
	msg := userMessage(err)
	if len(args) == 0 {
		return msg
	}
	known, codesErr := r.svc.KnownCodes(ctx)
	if codesErr != nil {
		log.Warn().Err(codesErr).Msg("failed to list codes for suggestion")
		return msg
	}
	if suggestion, ok := match.ClosestCode(args[0], known); ok {
		return fmt.Sprintf("%s Did you mean %s?", msg, suggestion)
	}
	return msg
}

func userMessage(err error) string {
	var f *failure.Failure
	if errors.As(err, &f) {
		return f.UserMessage()
	}
	return "internal error"
}

func (r *Registry) registerAll() {
	r.add("help", "help", "List all commands.", r.help)
	r.add("status", "status", "Property counts per status.", r.status)
	r.add("check", "check <code>", "Full state of one property.", r.check)
	r.add("available", "available", "List AVAILABLE properties.", r.listStatus(models.PropertyAvailable))
	r.add("occupied", "occupied", "List OCCUPIED properties with guests.", r.occupied)
	r.add("pending_cleaning", "pending_cleaning", "List properties waiting for cleaning.", r.listStatus(models.PropertyPendingCleaning))
	r.add("early_checkout", "early_checkout <code>", "Depart the guest now, property goes to cleaning.", r.earlyCheckout)
	r.add("set_clean", "set_clean <code>", "Mark a cleaned property available.", r.setClean)
	r.add("cancel_booking", "cancel_booking <booking-id>", "Cancel a booking and free the property.", r.cancelBooking)
	r.add("edit_booking", "edit_booking <booking-id> <field>=<value> ...", "Edit guest, platform, payment or checkin (fields: guest, platform, payment, checkin).", r.editBooking)
	r.add("relocate", "relocate <code> <target-code> <checkout YYYY-MM-DD>", "Move the pending guest to an available property.", r.relocate)
	r.add("log_issue", "log_issue <code> <description>", "Record a maintenance issue.", r.logIssue)
	r.add("block_property", "block_property <code> [reason]", "Take a property out of service.", r.blockProperty)
	r.add("unblock_property", "unblock_property <code>", "Return a blocked property to service.", r.unblockProperty)
	r.add("rename_property", "rename_property <old-code> <new-code>", "Rename a property and its booking history labels.", r.renameProperty)
	r.add("booking_history", "booking_history <code> [n]", "Recent bookings for a property.", r.bookingHistory)
	r.add("find_guest", "find_guest <name>", "Search active bookings by guest name.", r.findGuest)
	r.add("daily_revenue", "daily_revenue [YYYY-MM-DD]", "Due payments for a day's check-ins.", r.dailyRevenue)
	r.add("relocations", "relocations [code] [n]", "Relocation history.", r.relocations)
}

func (r *Registry) help(ctx context.Context, args []string) (string, error) {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, name := range r.order {
		cmd := r.commands[name]
		fmt.Fprintf(&b, "\n%s - %s", cmd.Usage, cmd.Summary)
	}
	return b.String(), nil
}

func (r *Registry) status(ctx context.Context, args []string) (string, error) {
	counts, err := r.svc.StatusSummary(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Property status:")
	for _, status := range []models.PropertyStatus{
		models.PropertyAvailable,
		models.PropertyOccupied,
		models.PropertyPendingCleaning,
		models.PropertyMaintenance,
	} {
		fmt.Fprintf(&b, "\n%s: %d", status, counts[status])
	}
	return b.String(), nil
}

func (r *Registry) check(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", failure.Validationf("property code is required")
	}
	overview, err := r.svc.CheckProperty(ctx, args[0])
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s is %s.", overview.Property.Code, overview.Property.Status)
	if overview.Property.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", overview.Property.Notes)
	}
	if booking := overview.ActiveBooking; booking != nil {
		fmt.Fprintf(&b, "\nGuest: %s (%s), checked in %s.", booking.GuestName, booking.Platform, booking.CheckinDate.Format("2006-01-02"))
		if booking.CheckoutDate != nil {
			fmt.Fprintf(&b, " Checkout %s.", booking.CheckoutDate.Format("2006-01-02"))
		}
		if booking.DuePayment != "" {
			fmt.Fprintf(&b, " Due: %s.", booking.DuePayment)
		}
	}
	open := 0
	for _, issue := range overview.Issues {
		if !issue.Resolved {
			open++
		}
	}
	if open > 0 {
		fmt.Fprintf(&b, "\nOpen issues: %d.", open)
	}
	return b.String(), nil
}

func (r *Registry) listStatus(status models.PropertyStatus) Handler {
	return func(ctx context.Context, args []string) (string, error) {
		props, err := r.svc.PropertiesByStatus(ctx, status)
		if err != nil {
			return "", err
		}
		if len(props) == 0 {
			return fmt.Sprintf("No properties are %s.", status), nil
		}
		codes := make([]string, 0, len(props))
		for _, prop := range props {
			codes = append(codes, prop.Code)
		}
		sort.Strings(codes)
		return fmt.Sprintf("%s (%d): %s", status, len(codes), strings.Join(codes, ", ")), nil
	}
}

func (r *Registry) occupied(ctx context.Context, args []string) (string, error) {
	props, err := r.svc.PropertiesByStatus(ctx, models.PropertyOccupied)
	if err != nil {
		return "", err
	}
	if len(props) == 0 {
		return "No properties are OCCUPIED.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "OCCUPIED (%d):", len(props))
	for _, prop := range props {
		overview, err := r.svc.CheckProperty(ctx, prop.Code)
		if err != nil {
			return "", err
		}
		if overview.ActiveBooking != nil {
			fmt.Fprintf(&b, "\n%s: %s", prop.Code, overview.ActiveBooking.GuestName)
		} else {
			fmt.Fprintf(&b, "\n%s: (no active booking)", prop.Code)
		}
	}
	return b.String(), nil
}

func (r *Registry) earlyCheckout(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", failure.Validationf("property code is required")
	}
	prop, err := r.svc.EarlyCheckout(ctx, args[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s checked out early, now %s.", prop.Code, prop.Status), nil
}

func (r *Registry) setClean(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", failure.Validationf("property code is required")
	}
	prop, err := r.svc.SetClean(ctx, args[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is clean and %s.", prop.Code, prop.Status), nil
}

func (r *Registry) cancelBooking(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", failure.Validationf("booking id is required")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return "", failure.Validationf("invalid booking id %q", args[0])
	}
	if err := r.svc.CancelBooking(ctx, id); err != nil {
		return "", err
	}
	return "Booking cancelled.", nil
}

func (r *Registry) editBooking(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", failure.Validationf("booking id and at least one field=value pair are required")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return "", failure.Validationf("invalid booking id %q", args[0])
	}

	var edits services.BookingEdits
	for _, pair := range args[1:] {
		field, value, found := strings.Cut(pair, "=")
		if !found {
			return "", failure.Validationf("expected field=value, got %q", pair)
		}
		switch strings.ToLower(field) {
		case "guest":
			v := value
			edits.GuestName = &v
		case "platform":
			v := value
			edits.Platform = &v
		case "payment":
			v := value
			edits.DuePayment = &v
		case "checkin":
			day, err := time.Parse("2006-01-02", value)
			if err != nil {
				return "", failure.Validationf("invalid checkin date %q, expected YYYY-MM-DD", value)
			}
			edits.CheckinDate = &day
		default:
			return "", failure.Validationf("unknown field %q (fields: guest, platform, payment, checkin)", field)
		}
	}

	booking, err := r.svc.EditBooking(ctx, id, edits)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Booking updated: %s at %s, checkin %s.", booking.GuestName, booking.PropertyCode, booking.CheckinDate.Format("2006-01-02")), nil
}

func (r *Registry) relocate(ctx context.Context, args []string) (string, error) {
	if len(args) < 3 {
		return "", failure.Validationf("property code, target code and checkout date are required")
	}
	checkout, err := time.Parse("2006-01-02", args[2])
	if err != nil {
		return "", failure.Validationf("invalid checkout date %q, expected YYYY-MM-DD", args[2])
	}
	if err := r.svc.RelocateGuest(ctx, args[0], args[1], checkout); err != nil {
		return "", err
	}
	return fmt.Sprintf("Guest relocated from %s to %s.", strings.ToUpper(args[0]), strings.ToUpper(args[1])), nil
}

func (r *Registry) logIssue(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", failure.Validationf("property code and description are required")
	}
	if err := r.svc.LogIssue(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
		return "", err
	}
	return "Issue logged.", nil
}

func (r *Registry) blockProperty(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", failure.Validationf("property code is required")
	}
	reason := strings.Join(args[1:], " ")
	prop, err := r.svc.BlockProperty(ctx, args[0], reason)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is blocked for maintenance.", prop.Code), nil
}

func (r *Registry) unblockProperty(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", failure.Validationf("property code is required")
	}
	prop, err := r.svc.UnblockProperty(ctx, args[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is back in service and %s.", prop.Code, prop.Status), nil
}

func (r *Registry) renameProperty(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", failure.Validationf("old and new property codes are required")
	}
	if err := r.svc.RenameProperty(ctx, args[0], args[1]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s renamed to %s, booking history follows the new name.", strings.ToUpper(args[0]), strings.ToUpper(args[1])), nil
}

func (r *Registry) bookingHistory(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", failure.Validationf("property code is required")
	}
	limit := 10
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return "", failure.Validationf("invalid count %q", args[1])
		}
		limit = n
	}
	bookings, err := r.svc.BookingHistory(ctx, args[0], limit)
	if err != nil {
		return "", err
	}
	if len(bookings) == 0 {
		return fmt.Sprintf("No bookings recorded for %s.", strings.ToUpper(args[0])), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d bookings for %s:", len(bookings), strings.ToUpper(args[0]))
	for _, booking := range bookings {
		fmt.Fprintf(&b, "\n%s: %s (%s, %s)", booking.CheckinDate.Format("2006-01-02"), booking.GuestName, booking.Platform, booking.Status)
	}
	return b.String(), nil
}

func (r *Registry) findGuest(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", failure.Validationf("guest name is required")
	}
	matches, err := r.svc.FindGuest(ctx, strings.Join(args, " "))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No matching guests found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d guests:", len(matches))
	for _, m := range matches {
		fmt.Fprintf(&b, "\n%s at %s (%s, %s)", m.GuestName, m.PropertyCode, m.Platform, m.Status)
	}
	return b.String(), nil
}

func (r *Registry) dailyRevenue(ctx context.Context, args []string) (string, error) {
	day := r.svc.Today()
	if len(args) > 0 {
		parsed, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return "", failure.Validationf("invalid date %q, expected YYYY-MM-DD", args[0])
		}
		day = parsed
	}
	total, lines, err := r.svc.DailyRevenue(ctx, day)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return fmt.Sprintf("No check-ins on %s.", day.Format("2006-01-02")), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Revenue for %s:", day.Format("2006-01-02"))
	for _, line := range lines {
		fmt.Fprintf(&b, "\n%s: %s, due %s", line.PropertyCode, line.GuestName, line.DuePayment)
	}
	fmt.Fprintf(&b, "\nTotal: %.2f", total)
	return b.String(), nil
}

func (r *Registry) relocations(ctx context.Context, args []string) (string, error) {
	code := ""
	limit := 20
	if len(args) > 0 {
		code = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return "", failure.Validationf("invalid count %q", args[1])
		}
		limit = n
	}
	relocations, err := r.svc.RelocationHistory(ctx, code, limit)
	if err != nil {
		return "", err
	}
	if len(relocations) == 0 {
		return "No relocations recorded.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Relocations (%d):", len(relocations))
	for _, rel := range relocations {
		fmt.Fprintf(&b, "\n%s: %s moved %s -> %s", rel.RelocatedAt.Format("2006-01-02"), rel.GuestName, rel.OriginalPropertyCode, rel.NewPropertyCode)
	}
	return b.String(), nil
}
