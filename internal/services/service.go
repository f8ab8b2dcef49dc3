// Package services holds the operational core: check-in intake, cleaning
// and checkout flows, overbooking conflict resolution, and mail alert
// ingestion. Every mutating operation runs in one store transaction and
// emits notifications only after the transaction commits.
package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jafarov01/property-management-bot/config"
	"github.com/jafarov01/property-management-bot/internal/cache"
	"github.com/jafarov01/property-management-bot/internal/notify"
	"github.com/jafarov01/property-management-bot/internal/parsing"
	"github.com/jafarov01/property-management-bot/internal/pipeline"
	"github.com/jafarov01/property-management-bot/internal/scheduler"
	"github.com/jafarov01/property-management-bot/internal/search"
	"github.com/jafarov01/property-management-bot/internal/store"
)

// Service is the operations core. The store is the source of truth; cache
// and search are best-effort accelerators and may be disabled.
type Service struct {
	store   store.Store
	emitter notify.Emitter
	parser  parsing.Service
	cache   *cache.RedisCache
	search  *search.ElasticClient
	sched   *scheduler.Scheduler
	queue   *pipeline.Queue
	clock   clockwork.Clock
	loc     *time.Location
	jobs    config.JobsConfig
}

// NewService wires the operations core.
func NewService(
	st store.Store,
	emitter notify.Emitter,
	parser parsing.Service,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	sched *scheduler.Scheduler,
	queue *pipeline.Queue,
	clock clockwork.Clock,
	loc *time.Location,
	jobs config.JobsConfig,
) *Service {
	return &Service{
		store:   st,
		emitter: emitter,
		parser:  parser,
		cache:   redisCache,
		search:  elasticClient,
		sched:   sched,
		queue:   queue,
		clock:   clock,
		loc:     loc,
		jobs:    jobs,
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// Today is the current time on the service clock in the configured
// timezone, for callers defaulting date arguments.
func (s *Service) Today() time.Time {
	return s.now()
}

// normalizeCode canonicalizes operator-typed property codes.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// checkoutReminderJobName names the per-booking one-shot reminder job.
func checkoutReminderJobName(bookingID fmt.Stringer) string {
	return "checkout-reminder-" + bookingID.String()
}

// checkoutReminderTime places the reminder at the configured local time of
// day on the day before checkout.
func (s *Service) checkoutReminderTime(checkout time.Time) time.Time {
	at, err := time.Parse("15:04", s.jobs.CheckoutReminderAt)
	if err != nil {
		at, _ = time.Parse("15:04", "18:00")
	}
	dayBefore := checkout.In(s.loc).AddDate(0, 0, -1)
	return time.Date(dayBefore.Year(), dayBefore.Month(), dayBefore.Day(), at.Hour(), at.Minute(), 0, 0, s.loc)
}
