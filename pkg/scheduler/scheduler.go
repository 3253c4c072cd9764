// Package scheduler implements the singleton sweep (C4) that drives the
// escalation state machine forward in time: issuing due check-ins, marking
// expired ones missed, catching terminal grace timeouts, and reconciling
// notifications a worker crash may have left incomplete.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/eternalsentinel/sentinel/internal/opsalert"
	"github.com/eternalsentinel/sentinel/internal/telemetry"
	"github.com/eternalsentinel/sentinel/pkg/checkin"
	"github.com/eternalsentinel/sentinel/pkg/letter"
	"github.com/eternalsentinel/sentinel/pkg/polling"
	"github.com/eternalsentinel/sentinel/pkg/queue"
	"github.com/eternalsentinel/sentinel/pkg/trustee"
)

// leaseTTL is the minimum time a leader holds the lock between renewals; New
// raises it to twice the sweep interval when that is longer, so the lease
// comfortably exceeds Interval and a slow sweep doesn't lose it to a standby
// instance mid-sweep.
const leaseTTL = 30 * time.Second

// reconcileStaleness is how long a trustee/letter may sit unnotified before
// the reconciliation subscan treats it as dead-lettered.
const reconcileStaleness = 15 * time.Minute

// Scheduler is the single active instance (enforced by a Redis lease) that
// sweeps due and overdue state on a fixed interval.
type Scheduler struct {
	pool     *pgxpool.Pool
	queue    *queue.Client
	opsalert *opsalert.Notifier
	logger   *slog.Logger

	lease     *leaseHolder
	interval  time.Duration
	batchSize int
}

// New creates a Scheduler. instanceID should be unique per process (e.g. a
// hostname plus pid) so the lease can tell this instance's ownership apart
// from a previous holder's.
func New(pool *pgxpool.Pool, rdb *redis.Client, q *queue.Client, notifier *opsalert.Notifier, logger *slog.Logger, instanceID string, interval time.Duration, batchSize int) *Scheduler {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	ttl := leaseTTL
	if ttl < 2*interval {
		ttl = 2 * interval
	}
	return &Scheduler{
		pool:      pool,
		queue:     q,
		opsalert:  notifier,
		logger:    logger,
		lease:     newLeaseHolder(rdb, instanceID, ttl),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run blocks, sweeping on each tick while this instance holds the leader
// lease, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	defer s.lease.release(context.Background())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			leading, err := s.lease.acquireOrRenew(ctx)
			if err != nil {
				s.logger.Error("scheduler lease", "error", err)
				continue
			}
			if !leading {
				continue
			}
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("scheduler sweep", "error", err)
			}
		}
	}
}

// sweep runs all four subscans once, in sequence (the reconciliation subscan
// as two passes, trustees then letters), each internally batched; the due
// and expired subscans are also transactional per row.
func (s *Scheduler) sweep(ctx context.Context) error {
	start := time.Now()
	defer func() {
		telemetry.SchedulerSweepDuration.Observe(time.Since(start).Seconds())
	}()

	now := time.Now().UTC()

	if err := s.sweepDueCheckIns(ctx, now); err != nil {
		s.logger.Error("sweeping due check-ins", "error", err)
	}
	if err := s.sweepExpiredCheckIns(ctx, now); err != nil {
		s.logger.Error("sweeping expired check-ins", "error", err)
	}
	if err := s.sweepStaleGrace3(ctx, now); err != nil {
		s.logger.Error("sweeping stale grace-3 configs", "error", err)
	}
	if err := s.reconcileTrustees(ctx, now); err != nil {
		s.logger.Error("reconciling trustee notifications", "error", err)
	}
	if err := s.reconcileLetters(ctx, now); err != nil {
		s.logger.Error("reconciling letter deliveries", "error", err)
	}

	return nil
}

// sweepDueCheckIns is the first subscan (spec.md §4.4): every ACTIVE config
// whose next_checkin_due has arrived gets a fresh PENDING check-in and its
// due date advances to the next cycle, so the same row doesn't re-fire every
// tick until it is confirmed or missed.
func (s *Scheduler) sweepDueCheckIns(ctx context.Context, now time.Time) error {
	configs, err := polling.NewStore(s.pool).DueForCheckIn(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("listing due polling configs: %w", err)
	}

	for _, cfg := range configs {
		if err := s.issueCheckIn(ctx, cfg, now); err != nil {
			s.logger.Error("issuing due check-in", "user_id", cfg.UserID, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) issueCheckIn(ctx context.Context, cfg polling.Config, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tok, err := checkin.GenerateToken()
	if err != nil {
		return fmt.Errorf("generating check-in token: %w", err)
	}

	created, err := checkin.NewStore(tx).Create(ctx, checkin.CreateParams{
		UserID:    cfg.UserID,
		Token:     tok,
		SentVia:   channelsFor(cfg),
		ExpiresAt: now.Add(cfg.Interval.ConfirmationWindow()),
	})
	if err != nil {
		return fmt.Errorf("creating check-in: %w", err)
	}

	advanced := cfg
	advanced.NextCheckInDue = now.Add(cfg.Interval.Duration())
	advanced.UpdatedAt = now
	if err := polling.NewStore(tx).Save(ctx, advanced); err != nil {
		return fmt.Errorf("advancing next check-in due date: %w", err)
	}

	if err := s.queue.EnqueueCheckInTx(ctx, tx, created.ID.String()); err != nil {
		return fmt.Errorf("enqueueing check-in notification: %w", err)
	}

	return tx.Commit(ctx)
}

// sweepExpiredCheckIns is the second subscan: a PENDING check-in past its
// expiry is marked MISSED and, unless its owner is PAUSED or already
// TRIGGERED, an escalation job is enqueued.
func (s *Scheduler) sweepExpiredCheckIns(ctx context.Context, now time.Time) error {
	expired, err := checkin.NewStore(s.pool).Expired(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("listing expired check-ins: %w", err)
	}

	for _, c := range expired {
		if err := s.markMissed(ctx, c, now); err != nil {
			s.logger.Error("marking check-in missed", "check_in_id", c.ID, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) markMissed(ctx context.Context, c checkin.CheckIn, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := checkin.NewStore(tx).MarkMissed(ctx, c.ID, now); err != nil {
		return fmt.Errorf("marking check-in missed: %w", err)
	}
	telemetry.CheckInsMissedTotal.Inc()

	cfg, err := polling.NewStore(tx).GetForUpdate(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("loading polling config: %w", err)
	}

	if cfg.Status == polling.StatusPaused || cfg.Status == polling.StatusTriggered {
		telemetry.EscalationsSkippedStaleTotal.Inc()
		return tx.Commit(ctx)
	}

	level := escalationLevel(cfg.Status)
	if err := s.queue.EnqueueEscalationTx(ctx, tx, cfg.UserID.String(), level, cfg.CurrentMissedCheckIns); err != nil {
		return fmt.Errorf("enqueueing escalation: %w", err)
	}
	telemetry.EscalationsTotal.WithLabelValues(fmt.Sprintf("%d", level)).Inc()

	return tx.Commit(ctx)
}

// sweepStaleGrace3 is the third subscan: a config that has sat in GRACE_3
// past its own grace window is the terminal grace timeout and gets released
// directly, independent of whatever check-in/escalation job may or may not
// still be in flight for it — the dead-letter path for a dropped escalation
// job landing the config in GRACE_3 without ever enqueueing its release.
func (s *Scheduler) sweepStaleGrace3(ctx context.Context, now time.Time) error {
	configs, err := polling.NewStore(s.pool).StaleGrace3(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("listing stale grace-3 configs: %w", err)
	}

	for _, cfg := range configs {
		if now.Sub(cfg.UpdatedAt) <= cfg.GracePeriod(3) {
			continue
		}
		if err := s.queue.EnqueueRelease(ctx, cfg.UserID.String(), 0); err != nil {
			s.logger.Error("enqueueing stale release", "user_id", cfg.UserID, "error", err)
			continue
		}
		if s.opsalert != nil {
			s.opsalert.JobDeadLettered(ctx, queue.QueueRelease, "release", 0)
		}
	}
	return nil
}

// reconcileTrustees is the supplemented fourth subscan: a trustee whose
// access was granted by a release worker but who never got an
// ACCESS_NOTIFIED audit entry (the worker crashed, or its notification email
// enqueue failed) gets its notification re-enqueued here.
func (s *Scheduler) reconcileTrustees(ctx context.Context, now time.Time) error {
	trustees, err := trustee.NewStore(s.pool).AccessGrantedWithoutNotification(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("listing unnotified trustee grants: %w", err)
	}

	for _, t := range trustees {
		if t.AccessGrantedAt == nil || now.Sub(*t.AccessGrantedAt) < reconcileStaleness {
			continue
		}
		if t.AccessToken == nil {
			continue
		}

		if err := s.queue.EnqueueEmail(ctx, queue.EmailJobArgs{
			To:      t.Email,
			Subject: "You have been granted access",
			Text:    fmt.Sprintf("Hi %s, you now have access. Your access code: %s", t.Name, *t.AccessToken),
			HTML:    fmt.Sprintf("<p>Hi %s, you now have access. Your access code: %s</p>", t.Name, *t.AccessToken),
		}); err != nil {
			s.logger.Error("re-enqueueing trustee access notification", "trustee_id", t.ID, "error", err)
			continue
		}
		if s.opsalert != nil {
			s.opsalert.JobDeadLettered(ctx, queue.QueueEmail, "trustee_access_notification", 0)
		}
	}
	return nil
}

// reconcileLetters re-enqueues delivery for letters stuck READY past
// reconcileStaleness after their owning release triggered.
func (s *Scheduler) reconcileLetters(ctx context.Context, now time.Time) error {
	letters, err := letter.NewStore(s.pool).ReadyWithoutDeliveryRecord(ctx, now.Add(-reconcileStaleness), s.batchSize)
	if err != nil {
		return fmt.Errorf("listing undelivered letters: %w", err)
	}

	for _, l := range letters {
		if err := s.queue.EnqueueEmail(ctx, queue.EmailJobArgs{
			To:      l.RecipientEmail,
			Subject: l.Subject,
			Text:    "A final letter has been released to you. Contact the account owner's trustees for details.",
			HTML:    "<p>A final letter has been released to you.</p>",
		}); err != nil {
			s.logger.Error("re-enqueueing letter delivery", "letter_id", l.ID, "error", err)
			continue
		}
		if s.opsalert != nil {
			s.opsalert.JobDeadLettered(ctx, queue.QueueEmail, "letter_delivery", 0)
		}
	}
	return nil
}

func escalationLevel(status polling.Status) int {
	switch status {
	case polling.StatusActive:
		return 1
	case polling.StatusGrace1:
		return 2
	default:
		return 3
	}
}

// channelsFor mirrors the owning config's enabled notification channels.
// Duplicated from pkg/worker rather than imported, since scheduler and
// worker each construct check-ins from a different local Config value and
// sharing the helper would mean either package importing the other for one
// three-line function.
func channelsFor(cfg polling.Config) []string {
	var channels []string
	if cfg.EmailEnabled {
		channels = append(channels, "EMAIL")
	}
	if cfg.SMSEnabled {
		channels = append(channels, "SMS")
	}
	return channels
}
