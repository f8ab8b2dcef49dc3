// Package jobs registers the recurring background jobs on the scheduler.
package jobs

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jafarov01/property-management-bot/config"
	"github.com/jafarov01/property-management-bot/internal/scheduler"
	"github.com/jafarov01/property-management-bot/internal/services"
)

// Register wires the recurring jobs. One-shot jobs (checkout reminders,
// late cleaning sweeps) are registered by the operations that create them.
func Register(sched *scheduler.Scheduler, svc *services.Service, cfg config.JobsConfig) error {
	err := sched.RegisterCron("midnight-sweep", cfg.MidnightSweepCron, func() {
		if _, err := svc.ReleaseCleanedProperties(context.Background()); err != nil {
			log.Error().Err(err).Msg("midnight sweep failed")
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to register midnight sweep")
	}

	err = sched.RegisterCron("daily-briefing", cfg.DailyBriefingCron, func() {
		if err := svc.DailyBriefing(context.Background()); err != nil {
			log.Error().Err(err).Msg("daily briefing failed")
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to register daily briefing")
	}

	err = sched.RegisterInterval("reminder-sweep", cfg.ReminderInterval, func() {
		if err := svc.ReminderSweep(context.Background()); err != nil {
			log.Error().Err(err).Msg("reminder sweep failed")
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to register reminder sweep")
	}

	return nil
}
