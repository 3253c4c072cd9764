package queue

import (
	"context"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/eternalsentinel/sentinel/internal/telemetry"
)

// deadLetterCounter implements river.ErrorHandler. River has no concept of a
// dead-letter queue itself — a job that exhausts MaxAttempts is simply left
// in the discarded state — so this is the hook that turns "discarded" into a
// counted, alertable event per spec.md's operational observability
// requirements.
type deadLetterCounter struct{}

// HandleError is called after every failed job attempt, whether or not it
// will be retried.
func (deadLetterCounter) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	if job.Attempt >= job.MaxAttempts {
		telemetry.JobsDeadLetteredTotal.WithLabelValues(job.Queue).Inc()
	}
	return nil
}

// HandlePanic is called when a worker's Work method panics. A panicking
// attempt is treated the same as a returned error for dead-letter accounting.
func (deadLetterCounter) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	if job.Attempt >= job.MaxAttempts {
		telemetry.JobsDeadLetteredTotal.WithLabelValues(job.Queue).Inc()
	}
	return nil
}
