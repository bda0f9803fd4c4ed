// Package notifier turns shipment activity into emails for the VHC team:
// milestone updates, exception alerts and the daily summary.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shipmentportal/internal/mailer"
	"shipmentportal/internal/model"
	"shipmentportal/pkg/circuitbreaker"
	"shipmentportal/pkg/metrics"
	"shipmentportal/pkg/util"
)

const (
	KindMilestone = "milestone"
	KindException = "exception"
	KindSummary   = "summary"

	exceptionAlertHandler = "exception_alert"
)

var ErrNoRecipients = errors.New("notifier: no recipients configured")

// Store is the persistence the notifier needs.
type Store interface {
	PendingMilestones(ctx context.Context, since, now time.Time) ([]model.MilestoneNotification, error)
	MarkMilestoneNotified(ctx context.Context, n model.MilestoneNotification, sentAt time.Time) (bool, error)
	RecordMilestoneFailure(ctx context.Context, n model.MilestoneNotification, f model.DeliveryFailure, now time.Time) error
	RecentOpenExceptions(ctx context.Context, since time.Time) ([]model.ExceptionAlert, error)
	DailySummary(ctx context.Context, start, end time.Time, limit int) (*model.DailySummary, error)
}

// Sender returns nil only when the relay accepted the message.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// AlertGuard marks an exception alert as handled. *util.Deduper satisfies it.
type AlertGuard interface {
	AcquireOnce(ctx context.Context, handler string, id int64) bool
	Release(ctx context.Context, handler string, id int64) error
}

// FailureCounter counts failed alert deliveries. *util.RetryCounter satisfies it.
type FailureCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type Config struct {
	Recipients           []string
	EscalationRecipients []string
	Window               time.Duration
	MaxAttempts          int
	BackoffBase          time.Duration
	BackoffMax           time.Duration
	SummaryLimit         int
	PortalURL            string
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Minute
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Minute
	}
	if c.SummaryLimit <= 0 {
		c.SummaryLimit = 10
	}
	if c.PortalURL == "" {
		c.PortalURL = DefaultPortalURL
	}
	return c
}

// RunStats summarises one job run.
type RunStats struct {
	Found        int
	Sent         int
	Failed       int
	DeadLettered int
	Skipped      int
}

type Service struct {
	store    Store
	sender   Sender
	cfg      Config
	guard    AlertGuard
	failures FailureCounter
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Service)

// WithAlertGuard enables exactly-once exception alerts.
func WithAlertGuard(g AlertGuard) Option {
	return func(s *Service) { s.guard = g }
}

// WithFailureCounter bounds how often a failing exception alert is retried.
func WithFailureCounter(c FailureCounter) Option {
	return func(s *Service) { s.failures = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, sender Sender, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		sender: sender,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckMilestones emails every eligible completed milestone and records the
// delivery outcome. A row is marked notified only after the relay accepted
// the email.
func (s *Service) CheckMilestones(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if len(s.cfg.Recipients) == 0 {
		return stats, ErrNoRecipients
	}

	now := s.now().UTC()
	pending, err := s.store.PendingMilestones(ctx, now.Add(-s.cfg.Window), now)
	if err != nil {
		return stats, fmt.Errorf("load pending milestones: %w", err)
	}
	stats.Found = len(pending)

	var storeErrs []error
	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		log := s.logger.With(
			zap.Int64("milestone_id", n.MilestoneID),
			zap.String("booking_number", n.BookingNumber),
			zap.String("milestone", n.MilestoneName),
		)

		html, err := renderMilestone(n, s.cfg.PortalURL, now)
		if err != nil {
			return stats, err
		}

		sendErr := s.sender.Send(ctx, mailer.Message{
			To:      s.cfg.Recipients,
			Subject: MilestoneSubject(n),
			HTML:    html,
		})
		if sendErr == nil {
			marked, err := s.store.MarkMilestoneNotified(ctx, n, s.now().UTC())
			if err != nil {
				// Delivered but not recorded: the next poll sends it again.
				log.Error("failed to mark milestone notified", zap.Error(err))
				storeErrs = append(storeErrs, err)
				continue
			}
			if marked {
				stats.Sent++
				metrics.IncrementNotification(KindMilestone, "sent")
				log.Info("milestone notification sent", zap.Int("attempt", n.Attempts+1))
			}
			continue
		}

		if errors.Is(sendErr, circuitbreaker.ErrCircuitBreakerOpen) {
			log.Warn("mail relay unavailable, stopping milestone batch")
			return stats, fmt.Errorf("milestone batch stopped: %w", sendErr)
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		failure := s.milestoneFailure(n, sendErr, now)
		if err := s.store.RecordMilestoneFailure(ctx, n, failure, now); err != nil {
			log.Error("failed to record milestone delivery failure", zap.Error(err))
			storeErrs = append(storeErrs, err)
			continue
		}

		if failure.Dead {
			stats.DeadLettered++
			metrics.IncrementNotification(KindMilestone, "dead_lettered")
			log.Error("milestone notification dead-lettered",
				zap.Int("attempts", failure.Attempts),
				zap.Error(sendErr),
			)
		} else {
			stats.Failed++
			metrics.IncrementNotification(KindMilestone, "failed")
			log.Warn("milestone notification failed, will retry",
				zap.Int("attempts", failure.Attempts),
				zap.Timep("next_attempt_at", failure.NextAttemptAt),
				zap.Error(sendErr),
			)
		}
	}

	s.logger.Info("processed milestones",
		zap.Int("found", stats.Found),
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed),
		zap.Int("dead_lettered", stats.DeadLettered),
	)
	return stats, errors.Join(storeErrs...)
}

func (s *Service) milestoneFailure(n model.MilestoneNotification, err error, now time.Time) model.DeliveryFailure {
	attempts := n.Attempts + 1
	retryable, _ := util.IsRetryableError(err)
	f := model.DeliveryFailure{Attempts: attempts, Error: err.Error()}
	if !util.ShouldRetry(attempts, s.cfg.MaxAttempts, retryable) {
		f.Dead = true
		return f
	}
	next := now.Add(util.Backoff(attempts, s.cfg.BackoffBase, s.cfg.BackoffMax))
	f.NextAttemptAt = &next
	return f
}

// exceptionRecipients is the base list plus the escalation list for HIGH and
// CRITICAL, without duplicates and in order.
func (s *Service) exceptionRecipients(sev model.Severity) []string {
	if !sev.Escalates() {
		return s.cfg.Recipients
	}
	seen := make(map[string]bool, len(s.cfg.Recipients)+len(s.cfg.EscalationRecipients))
	out := make([]string, 0, len(s.cfg.Recipients)+len(s.cfg.EscalationRecipients))
	for _, list := range [][]string{s.cfg.Recipients, s.cfg.EscalationRecipients} {
		for _, r := range list {
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// CheckExceptions alerts on OPEN exceptions raised inside the window. With an
// AlertGuard each exception is alerted once; without one every poll inside
// the window alerts again.
func (s *Service) CheckExceptions(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if len(s.cfg.Recipients) == 0 {
		return stats, ErrNoRecipients
	}

	now := s.now().UTC()
	alerts, err := s.store.RecentOpenExceptions(ctx, now.Add(-s.cfg.Window))
	if err != nil {
		return stats, fmt.Errorf("load open exceptions: %w", err)
	}
	stats.Found = len(alerts)

	for _, a := range alerts {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if s.guard != nil && !s.guard.AcquireOnce(ctx, exceptionAlertHandler, a.ExceptionID) {
			stats.Skipped++
			continue
		}

		log := s.logger.With(
			zap.Int64("exception_id", a.ExceptionID),
			zap.String("booking_number", a.BookingNumber),
			zap.String("severity", string(a.Severity)),
		)

		html, err := renderException(a)
		if err != nil {
			s.release(ctx, a.ExceptionID)
			return stats, err
		}

		sendErr := s.sender.Send(ctx, mailer.Message{
			To:      s.exceptionRecipients(a.Severity),
			Subject: ExceptionSubject(a),
			HTML:    html,
		})
		if sendErr == nil {
			stats.Sent++
			metrics.IncrementNotification(KindException, "sent")
			if s.failures != nil {
				_ = s.failures.Reset(ctx, util.FormatRetryKey(exceptionAlertHandler, a.ExceptionID))
			}
			log.Info("exception alert sent")
			continue
		}

		if errors.Is(sendErr, circuitbreaker.ErrCircuitBreakerOpen) {
			s.release(ctx, a.ExceptionID)
			log.Warn("mail relay unavailable, stopping exception batch")
			return stats, fmt.Errorf("exception batch stopped: %w", sendErr)
		}

		if s.giveUpOnAlert(ctx, a.ExceptionID, sendErr) {
			stats.DeadLettered++
			metrics.IncrementNotification(KindException, "dead_lettered")
			log.Error("exception alert dead-lettered", zap.Error(sendErr))
			continue
		}

		s.release(ctx, a.ExceptionID)
		stats.Failed++
		metrics.IncrementNotification(KindException, "failed")
		log.Warn("exception alert failed", zap.Error(sendErr))
	}

	s.logger.Info("processed exceptions",
		zap.Int("found", stats.Found),
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// giveUpOnAlert decides whether a failed alert keeps its dedup marker for
// good. Only meaningful with a guard; without one nothing is remembered.
func (s *Service) giveUpOnAlert(ctx context.Context, exceptionID int64, sendErr error) bool {
	if s.guard == nil {
		return false
	}
	retryable, _ := util.IsRetryableError(sendErr)
	if !retryable {
		return true
	}
	if s.failures == nil {
		return false
	}
	count, err := s.failures.IncrementAndGet(ctx, util.FormatRetryKey(exceptionAlertHandler, exceptionID))
	if err != nil {
		s.logger.Warn("failed to count alert failure", zap.Int64("exception_id", exceptionID), zap.Error(err))
		return false
	}
	return int(count) >= s.cfg.MaxAttempts
}

func (s *Service) release(ctx context.Context, exceptionID int64) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, exceptionAlertHandler, exceptionID); err != nil {
		s.logger.Warn("failed to release alert marker", zap.Int64("exception_id", exceptionID), zap.Error(err))
	}
}

// SendDailySummary emails today's (UTC) counters and the most recently
// updated active shipments.
func (s *Service) SendDailySummary(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if len(s.cfg.Recipients) == 0 {
		return stats, ErrNoRecipients
	}

	start, end := model.DayBounds(s.now())
	sum, err := s.store.DailySummary(ctx, start, end, s.cfg.SummaryLimit)
	if err != nil {
		return stats, fmt.Errorf("load daily summary: %w", err)
	}
	stats.Found = 1

	html, err := renderSummary(sum, s.cfg.PortalURL)
	if err != nil {
		return stats, err
	}

	if err := s.sender.Send(ctx, mailer.Message{
		To:      s.cfg.Recipients,
		Subject: SummarySubject(start),
		HTML:    html,
	}); err != nil {
		stats.Failed++
		metrics.IncrementNotification(KindSummary, "failed")
		return stats, fmt.Errorf("send daily summary: %w", err)
	}

	stats.Sent++
	metrics.IncrementNotification(KindSummary, "sent")
	s.logger.Info("daily summary sent",
		zap.String("day", start.Format("2006-01-02")),
		zap.Int("active_shipments", sum.ActiveShipments),
		zap.Int("milestones_today", sum.MilestonesToday),
		zap.Int("open_exceptions", sum.OpenExceptions),
		zap.Int("documents_today", sum.DocumentsToday),
	)
	return stats, nil
}
