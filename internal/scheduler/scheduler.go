// Package scheduler wraps gocron with name-keyed registration so jobs can
// be re-registered safely and one-shot jobs can be added at runtime.
package scheduler

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Scheduler runs named jobs. Registering a name that already exists
// replaces the previous job, so restarts and dynamic re-registration are
// idempotent. Every job runs in singleton mode: a tick that fires while
// the previous run is still going is rescheduled, never overlapped.
type Scheduler struct {
	mu    sync.Mutex
	inner gocron.Scheduler
	clock clockwork.Clock
	jobs  map[string]uuid.UUID
}

// New creates a scheduler in the given location using the real clock.
func New(location *time.Location) (*Scheduler, error) {
	return NewWithClock(location, clockwork.NewRealClock())
}

// NewWithClock creates a scheduler with an injected clock, for tests.
func NewWithClock(location *time.Location, clock clockwork.Clock) (*Scheduler, error) {
	inner, err := gocron.NewScheduler(
		gocron.WithLocation(location),
		gocron.WithClock(clock),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}
	return &Scheduler{
		inner: inner,
		clock: clock,
		jobs:  make(map[string]uuid.UUID),
	}, nil
}

// RegisterCron registers a recurring job on a five-field cron expression.
func (s *Scheduler) RegisterCron(name, expression string, task func()) error {
	return s.register(name, gocron.CronJob(expression, false), task)
}

// RegisterInterval registers a recurring job on a fixed interval.
func (s *Scheduler) RegisterInterval(name string, interval time.Duration, task func()) error {
	return s.register(name, gocron.DurationJob(interval), task)
}

// RegisterOneShot registers a job that fires once at the given time. Times
// in the past fire on the next scheduler tick rather than being dropped.
func (s *Scheduler) RegisterOneShot(name string, at time.Time, task func()) error {
	if !at.After(s.clock.Now()) {
		at = s.clock.Now().Add(time.Second)
	}
	return s.register(name, gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)), task)
}

func (s *Scheduler) register(name string, definition gocron.JobDefinition, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[name]; ok {
		if err := s.inner.RemoveJob(existing); err != nil {
			log.Warn().Err(err).Str("job", name).Msg("failed to remove previous job registration")
		}
		delete(s.jobs, name)
	}

	job, err := s.inner.NewJob(
		definition,
		gocron.NewTask(func() {
			log.Debug().Str("job", name).Msg("job fired")
			task()
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to register job %s", name)
	}
	s.jobs[name] = job.ID()
	return nil
}

// Remove drops a named job if it is registered.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.jobs[name]; ok {
		if err := s.inner.RemoveJob(id); err != nil {
			log.Warn().Err(err).Str("job", name).Msg("failed to remove job")
		}
		delete(s.jobs, name)
	}
}

// Names returns the currently registered job names.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() {
	s.inner.Start()
}

// Shutdown stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Shutdown() error {
	return s.inner.Shutdown()
}
