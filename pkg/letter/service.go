package letter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eternalsentinel/sentinel/internal/db"
	"github.com/eternalsentinel/sentinel/internal/storeerr"
)

// Service implements final-letter drafting and the DRAFT -> READY transition
// that makes a letter eligible for release delivery.
type Service struct {
	store *Store
}

// NewService creates a letter Service.
func NewService(dbtx db.DBTX) *Service {
	return &Service{store: NewStore(dbtx)}
}

// CreateRequest is the input to Create. EncryptedBody and Nonce are opaque
// client-encrypted ciphertext, stored exactly as supplied, the same way the
// vault never decrypts item payloads.
type CreateRequest struct {
	UserID         uuid.UUID
	RecipientName  string
	RecipientEmail string
	Subject        string
	EncryptedBody  []byte
	Nonce          []byte
}

// Create drafts a new letter in DRAFT status.
func (s *Service) Create(ctx context.Context, req CreateRequest) (FinalLetter, error) {
	l, err := s.store.Create(ctx, CreateParams{
		UserID:         req.UserID,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		Subject:        req.Subject,
		EncryptedBody:  req.EncryptedBody,
		Nonce:          req.Nonce,
	})
	if err != nil {
		return FinalLetter{}, fmt.Errorf("%w: creating letter: %v", storeerr.ErrStoreUnavailable, err)
	}
	return l, nil
}

// ListByUser returns every letter belonging to a user.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]FinalLetter, error) {
	items, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing letters: %v", storeerr.ErrStoreUnavailable, err)
	}
	return items, nil
}

// MarkReady transitions a letter from DRAFT to READY, making it eligible for
// release delivery the next time its owner's polling config triggers.
func (s *Service) MarkReady(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.store.MarkReady(ctx, id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: letter not found or not in DRAFT", storeerr.ErrConflict)
		}
		return fmt.Errorf("%w: marking letter ready: %v", storeerr.ErrStoreUnavailable, err)
	}
	return nil
}
