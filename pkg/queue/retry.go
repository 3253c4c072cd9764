package queue

import (
	"math"
	"time"

	"github.com/riverqueue/river/rivertype"
)

// notificationBackoffBase and stateBackoffBase are the two starting
// intervals spec.md §4.2 names: notification queues (email, sms) retry
// faster than state-transition queues (checkin, escalation, release), since
// a failed notification send is cheaper to repeat than a failed state
// transition attempt racing the next scheduler sweep.
const (
	notificationBackoffBase = 30 * time.Second
	stateBackoffBase        = 60 * time.Second
)

// Backoff implements river's retry-policy hook with exponential growth from
// a per-queue-class base, doubling on each attempt.
type Backoff struct{}

// NextRetry returns when a failed job's next attempt should run.
func (Backoff) NextRetry(job *rivertype.JobRow) time.Time {
	base := stateBackoffBase
	switch job.Queue {
	case QueueEmail, QueueSMS:
		base = notificationBackoffBase
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))

	return time.Now().UTC().Add(delay)
}
