// Package queue wraps River (a Postgres-native durable job queue) behind the
// five logical queues spec.md §4.2 requires: checkin, escalation, release,
// email, sms. Each logical job type is a river.JobArgs struct whose Kind()
// is the queue name; idempotency keys are encoded by the args' own fields,
// which participate in river.UniqueOpts so duplicate enqueues within River's
// "not yet terminal" window coalesce into one run.
package queue

import (
	"time"

	"github.com/riverqueue/river"
)

// Queue names, one per river.QueueConfig entry.
const (
	QueueCheckIn    = "checkin"
	QueueEscalation = "escalation"
	QueueRelease    = "release"
	QueueEmail      = "email"
	QueueSMS        = "sms"
)

// Default retry budgets per spec.md §4.2: release gets extra attempts since
// it carries the highest cost of failure, everything else gets three.
const (
	maxAttemptsDefault = 3
	maxAttemptsRelease = 5
)

// CheckInJobArgs drives the Check-in Worker (C5): render and dispatch the
// notification for a freshly created check-in.
type CheckInJobArgs struct {
	CheckInID string `json:"check_in_id"`
}

// Kind identifies the job's queue.
func (CheckInJobArgs) Kind() string { return QueueCheckIn }

// InsertOpts sets the idempotency key checkin:<checkInId> and the default
// retry budget.
func (a CheckInJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueCheckIn,
		MaxAttempts: maxAttemptsDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	}
}

// EscalationJobArgs drives the Escalation Worker (C6): apply a Miss event to
// the user's PollingConfig. ExpectedMissedCount is the race-free guard
// against stale escalations (spec.md §4.3).
type EscalationJobArgs struct {
	UserID              string `json:"user_id"`
	Level               int    `json:"level"`
	ExpectedMissedCount int    `json:"expected_missed_count"`
}

// Kind identifies the job's queue.
func (EscalationJobArgs) Kind() string { return QueueEscalation }

// InsertOpts sets the idempotency key escalation:<userId>:<level>:<missedCountAtEnqueue>.
func (a EscalationJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueEscalation,
		MaxAttempts: maxAttemptsDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	}
}

// ReleaseJobArgs drives the Release Worker (C7): the one-shot death protocol
// for a single user.
type ReleaseJobArgs struct {
	UserID string `json:"user_id"`
}

// Kind identifies the job's queue.
func (ReleaseJobArgs) Kind() string { return QueueRelease }

// InsertOpts sets the idempotency key release:<userId> and the elevated
// release retry budget; MaxWorkers=1 on the queue itself (configured at
// client construction) provides the global concurrency cap.
func (a ReleaseJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueRelease,
		MaxAttempts: maxAttemptsRelease,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	}
}

// EmailJobArgs is a single outbound email handed to the pluggable
// sendEmail transport.
type EmailJobArgs struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Kind identifies the job's queue.
func (EmailJobArgs) Kind() string { return QueueEmail }

// InsertOpts returns the notification-queue retry budget. Email jobs carry
// no idempotency key of their own: spec.md only names checkin/escalation/
// release keys, and repeated sends are an acceptable cost against silent
// notification loss.
func (a EmailJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueEmail, MaxAttempts: maxAttemptsDefault}
}

// SMSJobArgs is a single outbound SMS handed to the pluggable sendSms
// transport.
type SMSJobArgs struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Kind identifies the job's queue.
func (SMSJobArgs) Kind() string { return QueueSMS }

// InsertOpts returns the notification-queue retry budget.
func (a SMSJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueSMS, MaxAttempts: maxAttemptsDefault}
}

// scheduledAt is a small helper shared by Client's Enqueue* methods to turn
// a delay into an absolute runAt.
func scheduledAt(in time.Duration) time.Time {
	if in <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().Add(in)
}
