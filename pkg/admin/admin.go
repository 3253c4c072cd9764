// Package admin implements the administrative override entry points into the
// escalation state machine: forcing a check-in confirmation or forcing
// immediate release, both gated by an ADMIN-role session.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eternalsentinel/sentinel/internal/audit"
	"github.com/eternalsentinel/sentinel/internal/storeerr"
	"github.com/eternalsentinel/sentinel/pkg/polling"
	"github.com/eternalsentinel/sentinel/pkg/queue"
)

// Service applies administrative overrides directly to a user's
// PollingConfig, each within its own row-locked transaction.
type Service struct {
	pool  *pgxpool.Pool
	queue *queue.Client
	audit *audit.Writer
}

// NewService creates an admin Service.
func NewService(pool *pgxpool.Pool, q *queue.Client, auditWriter *audit.Writer) *Service {
	return &Service{pool: pool, queue: q, audit: auditWriter}
}

// ForceCheckIn forces a Confirm event for userId, the administrative
// equivalent of the user confirming their own check-in.
func (s *Service) ForceCheckIn(ctx context.Context, userID uuid.UUID) (polling.Config, error) {
	return s.apply(ctx, userID, polling.EventAdminForceCheckIn, "ADMIN_FORCE_CHECKIN", false)
}

// ForceTrigger forces an AdminTrigger event for userId and enqueues
// release:<userId> with zero delay within the same transaction. The release
// worker then grants trustee access, delivers letters and writes the
// TRIGGERED status; the returned Config is the state that release produces.
func (s *Service) ForceTrigger(ctx context.Context, userID uuid.UUID) (polling.Config, error) {
	return s.apply(ctx, userID, polling.EventAdminTrigger, "ADMIN_TRIGGER", true)
}

func (s *Service) apply(ctx context.Context, userID uuid.UUID, kind polling.EventKind, auditKind string, enqueueRelease bool) (polling.Config, error) {
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return polling.Config{}, fmt.Errorf("%w: beginning transaction: %v", storeerr.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	configs := polling.NewStore(tx)
	cfg, err := configs.GetForUpdate(ctx, userID)
	if err != nil {
		return polling.Config{}, fmt.Errorf("%w: loading polling config: %v", storeerr.ErrNotFound, err)
	}

	prevStatus := cfg.Status
	next, effects := polling.Step(cfg, polling.Event{Kind: kind, Now: now})
	if len(effects) == 0 {
		// Step emits no effects only on its no-op paths (e.g. AdminTrigger
		// against an already-TRIGGERED config, or AdminForceCheckIn against
		// TRIGGERED).
		return polling.Config{}, fmt.Errorf("%w: no transition available from %s", storeerr.ErrConflict, prevStatus)
	}

	// The release worker performs the TRIGGERED transition itself and exits
	// early on a config that is already TRIGGERED, so the trigger path leaves
	// the status for it to write.
	if !enqueueRelease {
		if err := configs.Save(ctx, next); err != nil {
			return polling.Config{}, fmt.Errorf("%w: saving polling config: %v", storeerr.ErrStoreUnavailable, err)
		}
	}

	if enqueueRelease {
		if err := s.queue.EnqueueReleaseTx(ctx, tx, userID.String(), 0); err != nil {
			return polling.Config{}, fmt.Errorf("%w: enqueueing release: %v", storeerr.ErrStoreUnavailable, err)
		}
	}

	if s.audit != nil {
		s.audit.Log(audit.Entry{
			UserID: &userID,
			Kind:   auditKind,
			Detail: []byte(fmt.Sprintf(`{"previous_status":%q,"next_status":%q}`, prevStatus, next.Status)),
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return polling.Config{}, fmt.Errorf("%w: committing override: %v", storeerr.ErrStoreUnavailable, err)
	}

	return next, nil
}
