package checkin

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eternalsentinel/sentinel/internal/audit"
	"github.com/eternalsentinel/sentinel/internal/storeerr"
	"github.com/eternalsentinel/sentinel/internal/telemetry"
	"github.com/eternalsentinel/sentinel/internal/token"
	"github.com/eternalsentinel/sentinel/pkg/polling"
)

// Observer carries the request metadata attached to a confirmation's audit
// entry — the caller's IP and user agent, when available.
type Observer struct {
	IPAddress *netip.Addr
	UserAgent *string
}

// ConfirmResult is what a successful confirmation reports back to the caller.
type ConfirmResult struct {
	NextCheckInDue time.Time
}

// Service implements the check-in confirmation path and the PENDING-rows
// compound operation behind the check-in HTTP handlers.
type Service struct {
	pool  *pgxpool.Pool
	audit *audit.Writer
}

// NewService creates a check-in Service.
func NewService(pool *pgxpool.Pool, auditWriter *audit.Writer) *Service {
	return &Service{pool: pool, audit: auditWriter}
}

// ConfirmByToken is the public, unauthenticated confirmation path: it locates
// the check-in by its single-use token and applies confirmCheckIn.
func (s *Service) ConfirmByToken(ctx context.Context, tok string, now time.Time, obs Observer) (ConfirmResult, error) {
	return s.confirm(ctx, obs, func(ctx context.Context, checkIns *Store) (CheckIn, error) {
		return checkIns.GetByTokenForUpdate(ctx, tok)
	})
}

// ConfirmLatestForUser is the authenticated manual confirmation path: it
// resolves the caller's own most recent PENDING check-in and applies the
// same confirmCheckIn logic.
func (s *Service) ConfirmLatestForUser(ctx context.Context, userID uuid.UUID, now time.Time, obs Observer) (ConfirmResult, error) {
	return s.confirm(ctx, obs, func(ctx context.Context, checkIns *Store) (CheckIn, error) {
		return checkIns.LatestPendingByUserForUpdate(ctx, userID)
	})
}

// confirm implements the confirmCheckIn compound operation: locate the
// CheckIn via lookup, validate its state, then within one transaction mark
// it CONFIRMED and apply a Confirm event to the owning PollingConfig, which
// resets an ACTIVE or GRACE_n config to ACTIVE and leaves a PAUSED or
// TRIGGERED one unchanged. Those two writes commit together or not at all;
// the audit entry is handed to the asynchronous audit writer and is not part
// of the transaction.
func (s *Service) confirm(ctx context.Context, obs Observer, lookup func(context.Context, *Store) (CheckIn, error)) (ConfirmResult, error) {
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: beginning transaction: %v", storeerr.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	checkIns := NewStore(tx)
	configs := polling.NewStore(tx)

	c, err := lookup(ctx, checkIns)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConfirmResult{}, fmt.Errorf("%w: check-in", storeerr.ErrNotFound)
		}
		return ConfirmResult{}, fmt.Errorf("%w: loading check-in: %v", storeerr.ErrStoreUnavailable, err)
	}

	if c.Status != StatusPending {
		return ConfirmResult{}, fmt.Errorf("%w: check-in already %s", storeerr.ErrAlreadyResolved, c.Status)
	}
	if c.IsExpired(now) {
		return ConfirmResult{}, fmt.Errorf("%w: check-in expired at %s", storeerr.ErrExpired, c.ExpiresAt)
	}

	if err := checkIns.MarkConfirmed(ctx, c.ID, now); err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: marking check-in confirmed: %v", storeerr.ErrStoreUnavailable, err)
	}

	cfg, err := configs.GetForUpdate(ctx, c.UserID)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: loading polling config: %v", storeerr.ErrStoreUnavailable, err)
	}

	next, _ := polling.Step(cfg, polling.Event{Kind: polling.EventConfirm, Now: now})
	if err := configs.Save(ctx, next); err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: saving polling config: %v", storeerr.ErrStoreUnavailable, err)
	}

	if s.audit != nil {
		detail := auditDetail(c.ID)
		s.audit.Log(audit.Entry{
			UserID:    &c.UserID,
			Kind:      "CHECK_IN_CONFIRMED",
			Detail:    detail,
			IPAddress: obs.IPAddress,
			UserAgent: obs.UserAgent,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: committing confirmation: %v", storeerr.ErrStoreUnavailable, err)
	}

	telemetry.CheckInsConfirmedTotal.Inc()

	return ConfirmResult{NextCheckInDue: next.NextCheckInDue}, nil
}

func auditDetail(checkInID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(`{"check_in_id":"%s"}`, checkInID))
}

// GenerateToken mints a fresh check-in token.
func GenerateToken() (string, error) {
	return token.Generate(token.CheckInTokenBytes)
}
