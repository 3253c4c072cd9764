package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/eternalsentinel/sentinel/internal/audit"
	"github.com/eternalsentinel/sentinel/internal/opsalert"
	"github.com/eternalsentinel/sentinel/internal/telemetry"
	"github.com/eternalsentinel/sentinel/internal/token"
	"github.com/eternalsentinel/sentinel/pkg/letter"
	"github.com/eternalsentinel/sentinel/pkg/polling"
	"github.com/eternalsentinel/sentinel/pkg/queue"
	"github.com/eternalsentinel/sentinel/pkg/trustee"
)

// ReleaseWorker consumes the release queue — the death protocol. It runs at
// a global concurrency of 1 (configured on the queue itself); combined with
// the TRIGGERED pre-commit check below, this gives at-most-once semantics
// for the release state transition even under job retry.
type ReleaseWorker struct {
	river.WorkerDefaults[queue.ReleaseJobArgs]
	pool     *pgxpool.Pool
	queue    *queue.Client
	audit    *audit.Writer
	opsalert *opsalert.Notifier
	logger   *slog.Logger
}

// NewReleaseWorker creates a ReleaseWorker.
func NewReleaseWorker(pool *pgxpool.Pool, q *queue.Client, auditWriter *audit.Writer, notifier *opsalert.Notifier, logger *slog.Logger) *ReleaseWorker {
	return &ReleaseWorker{pool: pool, queue: q, audit: auditWriter, opsalert: notifier, logger: logger}
}

// SetQueue wires the queue client after construction; see CheckInWorker.SetQueue.
func (w *ReleaseWorker) SetQueue(q *queue.Client) { w.queue = q }

// Work processes a single release job.
func (w *ReleaseWorker) Work(ctx context.Context, job *river.Job[queue.ReleaseJobArgs]) error {
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
	trustees := trustee.NewStore(tx)
	letters := letter.NewStore(tx)

	cfg, err := configs.GetForUpdate(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading polling config: %w", err)
	}

	if cfg.Status == polling.StatusTriggered {
		// Already released. A retry landed after a prior attempt committed
		// the transition but crashed before step 8's notifications finished;
		// the reconciliation sweep, not this worker, owns catching those up.
		return tx.Commit(ctx)
	}

	eligibleTrustees, err := trustees.ReleaseEligibleByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading release-eligible trustees: %w", err)
	}

	readyLetters, err := letters.ReadyByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading ready letters: %w", err)
	}

	now := time.Now().UTC()
	grantedAccessTokens := make(map[uuid.UUID]string, len(eligibleTrustees))

	for _, t := range eligibleTrustees {
		accessToken, err := token.Generate(token.TrusteeAccessTokenBytes)
		if err != nil {
			return fmt.Errorf("generating trustee access token: %w", err)
		}
		expiresAt := now.Add(trustee.AccessGrantDuration)
		if err := trustees.GrantAccess(ctx, t.ID, accessToken, now, expiresAt); err != nil {
			return fmt.Errorf("granting trustee access: %w", err)
		}
		grantedAccessTokens[t.ID] = accessToken
		telemetry.TrusteeAccessGrantedTotal.Inc()

		w.audit.Log(audit.Entry{
			UserID: &userID,
			Kind:   "ACCESS_GRANTED",
			Detail: []byte(fmt.Sprintf(`{"trustee_id":"%s"}`, t.ID)),
		})
	}

	next, _ := polling.Step(cfg, polling.Event{Kind: polling.EventAdminTrigger, Now: now})
	if err := configs.Save(ctx, next); err != nil {
		return fmt.Errorf("saving triggered polling config: %w", err)
	}

	w.audit.Log(audit.Entry{
		UserID: &userID,
		Kind:   "DEATH_PROTOCOL_TRIGGERED",
		Detail: []byte(fmt.Sprintf(`{"trustees_notified":%d,"letters_queued":%d}`, len(eligibleTrustees), len(readyLetters))),
	})

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing release transaction: %w", err)
	}

	telemetry.ReleasesTriggeredTotal.Inc()

	var displayName, userEmail string
	row := w.pool.QueryRow(ctx, `SELECT display_name, email FROM users WHERE id = $1`, userID)
	if err := row.Scan(&displayName, &userEmail); err != nil {
		// The release itself already committed; a user lookup failure here
		// only means we don't know what to put in the trustee notifications,
		// so don't send them with blank content — log and let the scheduler's
		// reconciliation passes (unnotified trustees, still-READY letters)
		// retry the notification fan-out later.
		w.logger.Error("loading user for release notifications", "error", err, "user_id", userID)
		return nil
	}

	for _, t := range eligibleTrustees {
		accessToken, ok := grantedAccessTokens[t.ID]
		if !ok {
			continue
		}
		accessURL := fmt.Sprintf("https://app.example.com/trustee/access?token=%s", accessToken)
		if err := w.queue.EnqueueEmail(ctx, queue.EmailJobArgs{
			To:      t.Email,
			Subject: fmt.Sprintf("%s has not checked in", displayName),
			HTML:    fmt.Sprintf(`<p>%s named you as a trustee. View the materials they left for you: <a href="%s">%s</a></p>`, displayName, accessURL, accessURL),
			Text:    fmt.Sprintf("%s named you as a trustee. View the materials they left for you: %s", displayName, accessURL),
		}); err != nil {
			w.logger.Error("enqueueing trustee access email", "error", err, "trustee_id", t.ID)
			continue
		}
		if t.Phone != nil {
			if err := w.queue.EnqueueSMS(ctx, queue.SMSJobArgs{
				To:      *t.Phone,
				Message: fmt.Sprintf("%s has not checked in. View what they left you: %s", displayName, accessURL),
			}); err != nil {
				w.logger.Error("enqueueing trustee access sms", "error", err, "trustee_id", t.ID)
			}
		}
		w.audit.Log(audit.Entry{
			UserID: &userID,
			Kind:   "ACCESS_NOTIFIED",
			Detail: []byte(fmt.Sprintf(`{"trustee_id":"%s"}`, t.ID)),
		})
	}

	for _, l := range readyLetters {
		if err := w.deliverLetter(ctx, l); err != nil {
			w.logger.Error("delivering final letter", "error", err, "letter_id", l.ID)
		}
	}

	if w.opsalert != nil {
		w.opsalert.DeathProtocolTriggered(ctx, userID.String(), len(eligibleTrustees), len(readyLetters))
	}

	return nil
}

// deliverLetter enqueues a single letter's delivery email and marks it
// DELIVERED in its own transaction keyed by letter id, so a crash between
// the two leaves the letter re-selectable by the reconciliation sweep
// without re-sending the release transaction itself.
func (w *ReleaseWorker) deliverLetter(ctx context.Context, l letter.FinalLetter) error {
	if err := w.queue.EnqueueEmail(ctx, queue.EmailJobArgs{
		To:      l.RecipientEmail,
		Subject: l.Subject,
		HTML:    fmt.Sprintf("<p>A letter has been left for you. Reference: %s</p>", l.ID),
		Text:    fmt.Sprintf("A letter has been left for you. Reference: %s", l.ID),
	}); err != nil {
		return fmt.Errorf("enqueueing letter delivery email: %w", err)
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning letter delivery transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := letter.NewStore(tx).MarkDelivered(ctx, l.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("marking letter delivered: %w", err)
	}

	return tx.Commit(ctx)
}
