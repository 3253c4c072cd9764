package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// Client wraps a river.Client[pgx.Tx] with one method per logical queue, so
// callers never construct river.InsertOpts or job args by hand.
type Client struct {
	river *river.Client[pgx.Tx]
}

// Config controls worker concurrency per queue. Release is always forced to
// MaxWorkers=1 regardless of what's passed here: spec.md §4.2 requires
// global serialization of the release queue for safety.
type Config struct {
	WorkerConcurrency int
	Workers           *river.Workers
}

// NewClient builds the River client, registering the five logical queues
// and the custom exponential backoff policy.
func NewClient(pool *pgxpool.Pool, cfg Config) (*Client, error) {
	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	riverConfig := &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueCheckIn:    {MaxWorkers: concurrency},
			QueueEscalation: {MaxWorkers: concurrency},
			QueueRelease:    {MaxWorkers: 1},
			QueueEmail:      {MaxWorkers: concurrency},
			QueueSMS:        {MaxWorkers: concurrency},
		},
		RetryPolicy:  Backoff{},
		ErrorHandler: deadLetterCounter{},
	}
	if cfg.Workers != nil {
		riverConfig.Workers = cfg.Workers
	}

	riverClient, err := river.NewClient(riverpgxv5.New(pool), riverConfig)
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return &Client{river: riverClient}, nil
}

// Start begins processing jobs. Only worker-mode processes call this; API
// and scheduler processes only enqueue.
func (c *Client) Start(ctx context.Context) error {
	return c.river.Start(ctx)
}

// Stop waits for in-flight jobs to finish and stops accepting new ones,
// honoring the graceful-shutdown requirement in spec.md §5.
func (c *Client) Stop(ctx context.Context) error {
	return c.river.Stop(ctx)
}

// EnqueueCheckIn enqueues the checkin:<checkInId> job with zero delay.
func (c *Client) EnqueueCheckIn(ctx context.Context, checkInID string) error {
	args := CheckInJobArgs{CheckInID: checkInID}
	_, err := c.river.Insert(ctx, args, insertOptsFor(args, 0))
	return err
}

// EnqueueCheckInTx is the transactional form, used by the scheduler's due
// check-ins subscan and the escalation worker so the job is only visible
// once its owning transaction commits.
func (c *Client) EnqueueCheckInTx(ctx context.Context, tx pgx.Tx, checkInID string) error {
	args := CheckInJobArgs{CheckInID: checkInID}
	_, err := c.river.InsertTx(ctx, tx, args, insertOptsFor(args, 0))
	return err
}

// EnqueueEscalation enqueues escalation:<userId>:<level>:<missedCountAtEnqueue>
// with zero delay.
func (c *Client) EnqueueEscalation(ctx context.Context, userID string, level, expectedMissedCount int) error {
	args := EscalationJobArgs{UserID: userID, Level: level, ExpectedMissedCount: expectedMissedCount}
	_, err := c.river.Insert(ctx, args, insertOptsFor(args, 0))
	return err
}

// EnqueueEscalationTx is the transactional form.
func (c *Client) EnqueueEscalationTx(ctx context.Context, tx pgx.Tx, userID string, level, expectedMissedCount int) error {
	args := EscalationJobArgs{UserID: userID, Level: level, ExpectedMissedCount: expectedMissedCount}
	_, err := c.river.InsertTx(ctx, tx, args, insertOptsFor(args, 0))
	return err
}

// EnqueueRelease enqueues release:<userId>, delayed by in (use 0 for an
// immediate release, as the terminal grace-timeout subscan does; a
// grace-period duration when scheduled by an escalation reaching GRACE_3).
func (c *Client) EnqueueRelease(ctx context.Context, userID string, in time.Duration) error {
	args := ReleaseJobArgs{UserID: userID}
	_, err := c.river.Insert(ctx, args, insertOptsFor(args, in))
	return err
}

// EnqueueReleaseTx is the transactional form.
func (c *Client) EnqueueReleaseTx(ctx context.Context, tx pgx.Tx, userID string, in time.Duration) error {
	args := ReleaseJobArgs{UserID: userID}
	_, err := c.river.InsertTx(ctx, tx, args, insertOptsFor(args, in))
	return err
}

// EnqueueEmail enqueues a single outbound email.
func (c *Client) EnqueueEmail(ctx context.Context, e EmailJobArgs) error {
	_, err := c.river.Insert(ctx, e, insertOptsFor(e, 0))
	return err
}

// EnqueueEmailTx is the transactional form.
func (c *Client) EnqueueEmailTx(ctx context.Context, tx pgx.Tx, e EmailJobArgs) error {
	_, err := c.river.InsertTx(ctx, tx, e, insertOptsFor(e, 0))
	return err
}

// EnqueueSMS enqueues a single outbound SMS.
func (c *Client) EnqueueSMS(ctx context.Context, s SMSJobArgs) error {
	_, err := c.river.Insert(ctx, s, insertOptsFor(s, 0))
	return err
}

// EnqueueSMSTx is the transactional form.
func (c *Client) EnqueueSMSTx(ctx context.Context, tx pgx.Tx, s SMSJobArgs) error {
	_, err := c.river.InsertTx(ctx, tx, s, insertOptsFor(s, 0))
	return err
}

type argsWithInsertOpts interface {
	river.JobArgs
	InsertOpts() river.InsertOpts
}

// insertOptsFor layers a caller-supplied delay onto the args type's static
// InsertOpts (queue, MaxAttempts, UniqueOpts).
func insertOptsFor(args argsWithInsertOpts, in time.Duration) *river.InsertOpts {
	opts := args.InsertOpts()
	if at := scheduledAt(in); !at.IsZero() {
		opts.ScheduledAt = at
	}
	return &opts
}
