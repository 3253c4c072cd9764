// Package letter implements pre-composed final letters delivered to their
// recipients by the release worker.
package letter

import (
	"time"

	"github.com/google/uuid"
)

// Status is a FinalLetter's delivery lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusReady     Status = "READY"
	StatusDelivered Status = "DELIVERED"
)

// FinalLetter is a single pre-composed message released to its recipient.
type FinalLetter struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	RecipientName  string
	RecipientEmail string
	Subject        string
	EncryptedBody  []byte
	Nonce          []byte
	Status         Status
	DeliveredAt    *time.Time
}
