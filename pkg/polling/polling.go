// Package polling implements the per-user liveness state machine: the
// ACTIVE/GRACE_1/GRACE_2/GRACE_3/TRIGGERED progression that the scheduler and
// workers drive, plus the PollingConfig entity it operates on.
package polling

import (
	"time"

	"github.com/google/uuid"
)

// Status is a PollingConfig's position in the escalation ladder.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusGrace1    Status = "GRACE_1"
	StatusGrace2    Status = "GRACE_2"
	StatusGrace3    Status = "GRACE_3"
	StatusTriggered Status = "TRIGGERED"
)

// Interval is the cadence at which a user must confirm liveness.
type Interval string

const (
	IntervalWeekly   Interval = "WEEKLY"
	IntervalBiweekly Interval = "BIWEEKLY"
	IntervalMonthly  Interval = "MONTHLY"
)

// Duration returns the wall-clock period between scheduled check-ins.
func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	case IntervalBiweekly:
		return 14 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// ConfirmationWindow returns how long a freshly issued (non-grace) check-in
// stays open before it is considered missed.
func (i Interval) ConfirmationWindow() time.Duration {
	switch i {
	case IntervalWeekly:
		return 3 * 24 * time.Hour
	case IntervalBiweekly:
		return 5 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// Config is one user's polling configuration — the aggregate the escalation
// state machine transitions.
type Config struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Interval              Interval
	EmailEnabled          bool
	SMSEnabled            bool
	GracePeriod1Days      int
	GracePeriod2Days      int
	GracePeriod3Days      int
	MissedBeforeTrigger   int
	CurrentMissedCheckIns int
	LastCheckInAt         *time.Time
	NextCheckInDue        time.Time
	Status                Status
	TriggeredAt           *time.Time
	UpdatedAt             time.Time
}

// GracePeriod returns the grace window for escalation level 1, 2, or 3.
func (c Config) GracePeriod(level int) time.Duration {
	switch level {
	case 1:
		return time.Duration(c.GracePeriod1Days) * 24 * time.Hour
	case 2:
		return time.Duration(c.GracePeriod2Days) * 24 * time.Hour
	default:
		return time.Duration(c.GracePeriod3Days) * 24 * time.Hour
	}
}

// levelOf maps a status to its escalation level (0 for ACTIVE/PAUSED/TRIGGERED).
func levelOf(s Status) int {
	switch s {
	case StatusGrace1:
		return 1
	case StatusGrace2:
		return 2
	case StatusGrace3:
		return 3
	default:
		return 0
	}
}
