package trustee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eternalsentinel/sentinel/internal/db"
	"github.com/eternalsentinel/sentinel/internal/storeerr"
	"github.com/eternalsentinel/sentinel/internal/token"
	"github.com/eternalsentinel/sentinel/pkg/queue"
)

// Service implements trustee creation, verification, and access lookup.
type Service struct {
	store *Store
	queue *queue.Client
}

// NewService creates a trustee Service. q may be nil in contexts that never
// create trustees (e.g. a read-only reporting path); Create returns an error
// rather than silently skipping the verification email in that case.
func NewService(dbtx db.DBTX, q *queue.Client) *Service {
	return &Service{store: NewStore(dbtx), queue: q}
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	UserID       uuid.UUID
	Name         string
	Email        string
	Phone        *string
	Relationship *string
}

// Create registers a new trustee in PENDING status, mints its verification
// token, and enqueues the verification email that moves it to VERIFIED.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Trustee, error) {
	if s.queue == nil {
		return Trustee{}, fmt.Errorf("%w: trustee creation requires a queue client", storeerr.ErrStoreUnavailable)
	}

	verificationToken, err := token.Generate(token.TrusteeAccessTokenBytes)
	if err != nil {
		return Trustee{}, fmt.Errorf("%w: generating verification token: %v", storeerr.ErrStoreUnavailable, err)
	}

	t, err := s.store.Create(ctx, CreateParams{
		UserID:            req.UserID,
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		Relationship:      req.Relationship,
		VerificationToken: verificationToken,
	})
	if err != nil {
		return Trustee{}, fmt.Errorf("%w: creating trustee: %v", storeerr.ErrStoreUnavailable, err)
	}

	verifyURL := fmt.Sprintf("https://app.example.com/trustee/verify?token=%s", verificationToken)
	if err := s.queue.EnqueueEmail(ctx, queue.EmailJobArgs{
		To:      t.Email,
		Subject: "Please confirm you as a trustee",
		HTML:    fmt.Sprintf(`<p>You've been named a trustee. Confirm: <a href="%s">%s</a></p>`, verifyURL, verifyURL),
		Text:    fmt.Sprintf("You've been named a trustee. Confirm: %s", verifyURL),
	}); err != nil {
		return Trustee{}, fmt.Errorf("%w: enqueueing verification email: %v", storeerr.ErrStoreUnavailable, err)
	}

	return t, nil
}

// ListByUser returns every trustee belonging to a user.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]Trustee, error) {
	return s.store.ListByUser(ctx, userID)
}

// VerifyByToken clears a trustee's verification token and moves it to
// VERIFIED. Single-use: a second call with the same token finds no row,
// since the token column is cleared on success.
func (s *Service) VerifyByToken(ctx context.Context, tok string, now time.Time) (Trustee, error) {
	t, err := s.store.GetByVerificationToken(ctx, tok)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trustee{}, fmt.Errorf("%w: verification token", storeerr.ErrNotFound)
		}
		return Trustee{}, fmt.Errorf("%w: loading trustee: %v", storeerr.ErrStoreUnavailable, err)
	}

	if t.Status != StatusPending {
		return Trustee{}, fmt.Errorf("%w: trustee already %s", storeerr.ErrAlreadyResolved, t.Status)
	}

	if err := s.store.Verify(ctx, t.ID, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trustee{}, fmt.Errorf("%w: trustee already resolved", storeerr.ErrAlreadyResolved)
		}
		return Trustee{}, fmt.Errorf("%w: verifying trustee: %v", storeerr.ErrStoreUnavailable, err)
	}

	t.Status = StatusVerified
	t.VerificationToken = nil
	t.VerifiedAt = &now
	return t, nil
}

// AccessInfo is the result of a successful access-token lookup, before the
// vault payload is attached.
type AccessInfo struct {
	Trustee Trustee
	UserID  uuid.UUID
}

// LookupAccessToken resolves an access token to its trustee, failing with
// Expired if the grant window has passed.
func (s *Service) LookupAccessToken(ctx context.Context, accessToken string, now time.Time) (AccessInfo, error) {
	t, err := s.store.GetByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessInfo{}, fmt.Errorf("%w: access token", storeerr.ErrNotFound)
		}
		return AccessInfo{}, fmt.Errorf("%w: loading trustee: %v", storeerr.ErrStoreUnavailable, err)
	}

	if t.Status != StatusActive || !t.HasActiveAccess(now) {
		return AccessInfo{}, fmt.Errorf("%w: access grant expired", storeerr.ErrExpired)
	}

	return AccessInfo{Trustee: t, UserID: t.UserID}, nil
}

// Revoke moves a trustee to REVOKED.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Revoke(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: trustee", storeerr.ErrNotFound)
		}
		return fmt.Errorf("%w: revoking trustee: %v", storeerr.ErrStoreUnavailable, err)
	}
	return nil
}
