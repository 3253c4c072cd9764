// Package worker implements the River worker set that drives the escalation
// state machine: the Check-in Worker (C5), Escalation Worker (C6), and
// Release Worker (C7).
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/eternalsentinel/sentinel/internal/db"
	"github.com/eternalsentinel/sentinel/pkg/checkin"
	"github.com/eternalsentinel/sentinel/pkg/polling"
	"github.com/eternalsentinel/sentinel/pkg/queue"
)

// CheckInWorker consumes the checkin queue: it materializes the
// notification for a pending check-in and hands it to the email/sms queues.
// It never mutates PollingConfig or CheckIn state — confirmation only
// arrives via the HTTP path.
type CheckInWorker struct {
	river.WorkerDefaults[queue.CheckInJobArgs]
	dbtx   db.DBTX
	queue  *queue.Client
	logger *slog.Logger
}

// NewCheckInWorker creates a CheckInWorker.
func NewCheckInWorker(dbtx db.DBTX, q *queue.Client, logger *slog.Logger) *CheckInWorker {
	return &CheckInWorker{dbtx: dbtx, queue: q, logger: logger}
}

// SetQueue wires the queue client after construction, letting the caller
// register this worker before the client that needs the registered worker
// set exists yet.
func (w *CheckInWorker) SetQueue(q *queue.Client) { w.queue = q }

// Work processes a single checkin job.
func (w *CheckInWorker) Work(ctx context.Context, job *river.Job[queue.CheckInJobArgs]) error {
	checkInID, err := uuid.Parse(job.Args.CheckInID)
	if err != nil {
		return fmt.Errorf("parsing check-in id: %w", err)
	}

	c, err := checkin.NewStore(w.dbtx).GetByID(ctx, checkInID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			w.logger.Warn("checkin job: check-in not found, acknowledging", "check_in_id", checkInID)
			return nil
		}
		return fmt.Errorf("loading check-in: %w", err)
	}

	if c.Status != checkin.StatusPending {
		// Idempotent no-op: a retried delivery for an already-resolved
		// check-in has nothing left to do.
		return nil
	}

	var displayName, email string
	row := w.dbtx.QueryRow(ctx, `SELECT display_name, email FROM users WHERE id = $1`, c.UserID)
	if err := row.Scan(&displayName, &email); err != nil {
		return fmt.Errorf("loading user for check-in notification: %w", err)
	}

	cfg, err := polling.NewStore(w.dbtx).GetByUserID(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("loading polling config: %w", err)
	}
	if cfg.Status == polling.StatusPaused {
		return nil
	}

	checkInURL := fmt.Sprintf("https://app.example.com/checkin?token=%s", c.Token)

	for _, channel := range c.SentVia {
		switch channel {
		case "EMAIL":
			if err := w.queue.EnqueueEmail(ctx, queue.EmailJobArgs{
				To:      email,
				Subject: "Please confirm you're okay",
				HTML:    fmt.Sprintf(`<p>Hi %s, please confirm: <a href="%s">%s</a></p>`, displayName, checkInURL, checkInURL),
				Text:    fmt.Sprintf("Hi %s, please confirm: %s", displayName, checkInURL),
			}); err != nil {
				return fmt.Errorf("enqueueing check-in email: %w", err)
			}
		case "SMS":
			// The account model carries no phone number for the end user
			// (only trustees have one). An SMS-enabled check-in is attempted
			// per sentVia, but there is no recipient to resolve it against;
			// the source exhibits the same gap and the spec treats sentVia
			// as "attempted", not "delivered".
			w.logger.Warn("checkin job: sms channel has no resolvable recipient", "check_in_id", checkInID)
		}
	}

	return nil
}
