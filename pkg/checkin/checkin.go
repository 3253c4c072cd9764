// Package checkin implements the time-bounded liveness prompt a user must
// answer: creation, expiry, and the atomic confirmCheckIn compound operation
// that resets the owning polling configuration.
package checkin

import (
	"time"

	"github.com/google/uuid"
)

// Status is a CheckIn's position in its one-way lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusMissed    Status = "MISSED"
	StatusCancelled Status = "CANCELLED"
)

// CheckIn is a single liveness prompt sent to a user.
type CheckIn struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Token       string
	Status      Status
	SentVia     []string
	SentAt      time.Time
	RespondedAt *time.Time
	ExpiresAt   time.Time
}

// IsExpired reports whether the check-in is past its deadline as of now.
// Equal to now counts as expired: only strictly-before is valid.
func (c CheckIn) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
