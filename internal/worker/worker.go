// Package worker assembles the notification jobs shared by the worker
// binary and portalctl.
package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shipmentportal/config"
	"shipmentportal/internal/notifier"
	"shipmentportal/internal/scheduler"
	"shipmentportal/pkg/util"
)

const (
	JobCheckMilestones = "check_milestones"
	JobCheckExceptions = "check_exceptions"
	JobDailySummary    = "daily_summary"
)

// alertMarkerTTL outlives the eligibility window so a marked exception ages
// out of the poll before its marker expires.
func alertMarkerTTL(window time.Duration) time.Duration {
	if window <= 0 {
		return time.Hour
	}
	return 2 * window
}

// NotifierConfig converts the file configuration into notifier settings.
func NotifierConfig(cfg config.NotifierConfig) notifier.Config {
	return notifier.Config{
		Recipients:           cfg.RecipientList(),
		EscalationRecipients: cfg.EscalationList(),
		Window:               cfg.Window,
		MaxAttempts:          cfg.MaxAttempts,
		BackoffBase:          cfg.BackoffBase,
		BackoffMax:           cfg.BackoffMax,
		SummaryLimit:         cfg.SummaryLimit,
		PortalURL:            cfg.PortalURL,
	}
}

// NewNotifier builds the notification service. With a Redis client and
// dedupe enabled, exception alerts are sent once per exception; without
// one every poll re-sends alerts for exceptions inside the window.
func NewNotifier(cfg config.NotifierConfig, store notifier.Store, sender notifier.Sender, rdb *redis.Client, logger *zap.Logger) *notifier.Service {
	var opts []notifier.Option
	if rdb != nil && cfg.DedupeExceptions {
		ttl := alertMarkerTTL(cfg.Window)
		opts = append(opts,
			notifier.WithAlertGuard(util.NewDeduper(rdb, ttl, logger)),
			notifier.WithFailureCounter(util.NewRetryCounter(rdb, ttl)),
		)
	} else {
		logger.Warn("exception alert dedupe disabled, alerts repeat while inside the window")
	}
	return notifier.NewService(store, sender, NotifierConfig(cfg), logger, opts...)
}

// Jobs returns the three notifier jobs. The polls run on start, the summary
// only on its schedule.
func Jobs(svc *notifier.Service, cfg config.NotifierConfig, logger *zap.Logger) []scheduler.Job {
	wrap := func(name string, fn func(context.Context) (notifier.RunStats, error)) func(context.Context) error {
		return func(ctx context.Context) error {
			stats, err := fn(ctx)
			logger.Debug("job finished",
				zap.String("job", name),
				zap.Int("found", stats.Found),
				zap.Int("sent", stats.Sent),
				zap.Int("failed", stats.Failed),
				zap.Int("dead_lettered", stats.DeadLettered),
				zap.Int("skipped", stats.Skipped),
			)
			return err
		}
	}
	return []scheduler.Job{
		{
			Name:       JobCheckMilestones,
			Schedule:   cfg.PollSchedule,
			Run:        wrap(JobCheckMilestones, svc.CheckMilestones),
			RunOnStart: true,
		},
		{
			Name:       JobCheckExceptions,
			Schedule:   cfg.PollSchedule,
			Run:        wrap(JobCheckExceptions, svc.CheckExceptions),
			RunOnStart: true,
		},
		{
			Name:     JobDailySummary,
			Schedule: cfg.SummarySchedule,
			Run:      wrap(JobDailySummary, svc.SendDailySummary),
		},
	}
}

// NewScheduler registers Jobs on a scheduler with the configured timeout.
func NewScheduler(svc *notifier.Service, cfg config.NotifierConfig, logger *zap.Logger) (*scheduler.Scheduler, error) {
	s := scheduler.New(cfg.JobTimeout, logger)
	for _, job := range Jobs(svc, cfg, logger) {
		if err := s.Add(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}
