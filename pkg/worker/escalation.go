package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/eternalsentinel/sentinel/internal/audit"
	"github.com/eternalsentinel/sentinel/pkg/checkin"
	"github.com/eternalsentinel/sentinel/pkg/polling"
	"github.com/eternalsentinel/sentinel/pkg/queue"
)

// EscalationWorker consumes the escalation queue: it applies a Miss event to
// a user's PollingConfig and, when the transition is not stale, opens the
// next grace-period check-in (and the terminal release, once GRACE_3 is
// reached).
type EscalationWorker struct {
	river.WorkerDefaults[queue.EscalationJobArgs]
	pool   *pgxpool.Pool
	queue  *queue.Client
	audit  *audit.Writer
	logger *slog.Logger
}

// NewEscalationWorker creates an EscalationWorker.
func NewEscalationWorker(pool *pgxpool.Pool, q *queue.Client, auditWriter *audit.Writer, logger *slog.Logger) *EscalationWorker {
	return &EscalationWorker{pool: pool, queue: q, audit: auditWriter, logger: logger}
}

// SetQueue wires the queue client after construction; see CheckInWorker.SetQueue.
func (w *EscalationWorker) SetQueue(q *queue.Client) { w.queue = q }

// Work processes a single escalation job.
func (w *EscalationWorker) Work(ctx context.Context, job *river.Job[queue.EscalationJobArgs]) error {
	userID, err := uuid.Parse(job.Args.UserID)
	if err != nil {
		return fmt.Errorf("parsing user id: %w", err)
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	configs := polling.NewStore(tx)
	checkIns := checkin.NewStore(tx)

	cfg, err := configs.GetForUpdate(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading polling config: %w", err)
	}

	now := time.Now().UTC()
	next, effects := polling.Step(cfg, polling.Event{
		Kind:                polling.EventMiss,
		Now:                 now,
		ExpectedMissedCount: job.Args.ExpectedMissedCount,
	})

	var auditKind string
	var auditDetail []byte
	var checkInToken string
	var checkInExpiresAt time.Time
	var createCheckIn bool
	var releaseDelay time.Duration
	var enqueueRelease bool

	for _, eff := range effects {
		switch eff.Kind {
		case polling.EffectAppendAudit:
			auditKind = eff.AuditKind
		case polling.EffectCreateGracePeriodCheckIn:
			createCheckIn = true
			checkInExpiresAt = now.Add(eff.ExpiresIn)
		case polling.EffectEnqueueRelease:
			enqueueRelease = true
			releaseDelay = eff.In
		}
	}

	if err := configs.Save(ctx, next); err != nil {
		return fmt.Errorf("saving polling config: %w", err)
	}

	if createCheckIn {
		checkInToken, err = checkin.GenerateToken()
		if err != nil {
			return fmt.Errorf("generating check-in token: %w", err)
		}

		sentVia := channelsFor(next)
		created, err := checkIns.Create(ctx, checkin.CreateParams{
			UserID:    userID,
			Token:     checkInToken,
			SentVia:   sentVia,
			ExpiresAt: checkInExpiresAt,
		})
		if err != nil {
			return fmt.Errorf("creating grace-period check-in: %w", err)
		}

		if err := w.queue.EnqueueCheckInTx(ctx, tx, created.ID.String()); err != nil {
			return fmt.Errorf("enqueueing grace-period check-in notification: %w", err)
		}
	}

	if enqueueRelease {
		if err := w.queue.EnqueueReleaseTx(ctx, tx, userID.String(), releaseDelay); err != nil {
			return fmt.Errorf("enqueueing release: %w", err)
		}
	}

	if auditKind != "" {
		auditDetail = escalationAuditDetail(job.Args.Level, next.CurrentMissedCheckIns)
		w.audit.Log(audit.Entry{
			UserID: &userID,
			Kind:   auditKind,
			Detail: auditDetail,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("committing escalation transaction: %w", err)
	}

	return nil
}

// channelsFor returns the notification channels a grace-period check-in
// should attempt, mirroring the channel flags on the owning config.
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

func escalationAuditDetail(level, currentMissedCheckIns int) []byte {
	return []byte(fmt.Sprintf(`{"level":%d,"current_missed_checkins":%d}`, level, currentMissedCheckIns))
}
