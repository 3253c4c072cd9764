// Package trustee implements the third parties a user designates to receive
// vault access when release fires: creation, email verification, and the
// access-token grant applied by the release worker.
package trustee

import (
	"time"

	"github.com/google/uuid"
)

// Status is a Trustee's position in its verification/access lifecycle.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusActive   Status = "ACTIVE"
	StatusRevoked  Status = "REVOKED"
)

// ReleaseEligible reports whether a trustee in this status may receive an
// access token when release fires.
func (s Status) ReleaseEligible() bool {
	return s == StatusVerified || s == StatusActive
}

// Trustee is a single designated recipient of vault access.
type Trustee struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Name              string
	Email             string
	Phone             *string
	Relationship      *string
	Status            Status
	VerificationToken *string
	VerifiedAt        *time.Time
	AccessToken       *string
	AccessGrantedAt   *time.Time
	AccessExpiresAt   *time.Time
}

// HasActiveAccess reports whether the trustee currently holds an unexpired
// access grant.
func (t Trustee) HasActiveAccess(now time.Time) bool {
	return t.AccessToken != nil && t.AccessExpiresAt != nil && t.AccessExpiresAt.After(now)
}

// AccessGrantDuration is how long a freshly minted access token remains valid.
const AccessGrantDuration = 30 * 24 * time.Hour
