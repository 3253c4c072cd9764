// Package vault stores the opaque, client-encrypted blobs released to
// trustees. The core never decrypts vault contents; it persists ciphertext
// and the wrapped master key material exactly as supplied.
package vault

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Item is a single opaque vault entry — a password, document, or note,
// client-encrypted before it ever reaches this service.
type Item struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Type          string
	Name          string
	EncryptedData []byte
	Nonce         []byte
	Metadata      json.RawMessage
	CreatedAt     time.Time
}

// MasterKey is the per-user wrapped master key material a trustee needs to
// decrypt every Item after release; it is itself opaque ciphertext stored
// alongside the owning user's vault items.
type MasterKey struct {
	EncryptedMasterKey string
	MasterKeySalt      string
	MasterKeyNonce     string
}
