package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eternalsentinel/sentinel/internal/db"
)

// Store provides database operations for check-ins.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a check-in Store backed by the given database connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const checkInColumns = `id, user_id, token, status, sent_via, sent_at, responded_at, expires_at`

func scanCheckIn(row pgx.Row) (CheckIn, error) {
	var c CheckIn
	err := row.Scan(&c.ID, &c.UserID, &c.Token, &c.Status, &c.SentVia, &c.SentAt, &c.RespondedAt, &c.ExpiresAt)
	return c, err
}

func scanCheckIns(rows pgx.Rows) ([]CheckIn, error) {
	defer rows.Close()
	var items []CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning check-in row: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating check-in rows: %w", err)
	}
	return items, nil
}

// GetByID returns a check-in by its surrogate key, used by the check-in
// worker which only carries the id through the job args.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins WHERE id = $1`
	return scanCheckIn(s.dbtx.QueryRow(ctx, query, id))
}

// GetByToken returns a check-in by its single-use token.
func (s *Store) GetByToken(ctx context.Context, token string) (CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins WHERE token = $1`
	return scanCheckIn(s.dbtx.QueryRow(ctx, query, token))
}

// GetByTokenForUpdate returns a check-in by token, locking the row. Callers
// must be inside a transaction.
func (s *Store) GetByTokenForUpdate(ctx context.Context, token string) (CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins WHERE token = $1 FOR UPDATE`
	return scanCheckIn(s.dbtx.QueryRow(ctx, query, token))
}

// LatestPendingByUser returns the most recently sent PENDING check-in for a
// user, used by the authenticated manual confirmation path.
func (s *Store) LatestPendingByUser(ctx context.Context, userID uuid.UUID) (CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins
	WHERE user_id = $1 AND status = 'PENDING'
	ORDER BY sent_at DESC
	LIMIT 1`
	return scanCheckIn(s.dbtx.QueryRow(ctx, query, userID))
}

// LatestPendingByUserForUpdate is the row-locking counterpart of
// LatestPendingByUser, for use inside confirmCheckIn's transaction.
func (s *Store) LatestPendingByUserForUpdate(ctx context.Context, userID uuid.UUID) (CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins
	WHERE user_id = $1 AND status = 'PENDING'
	ORDER BY sent_at DESC
	LIMIT 1
	FOR UPDATE`
	return scanCheckIn(s.dbtx.QueryRow(ctx, query, userID))
}

// CreateParams holds parameters for creating a check-in.
type CreateParams struct {
	UserID    uuid.UUID
	Token     string
	SentVia   []string
	ExpiresAt time.Time
}

// Create inserts a new PENDING check-in.
func (s *Store) Create(ctx context.Context, p CreateParams) (CheckIn, error) {
	query := `INSERT INTO check_ins (user_id, token, sent_via, expires_at)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + checkInColumns
	row := s.dbtx.QueryRow(ctx, query, p.UserID, p.Token, p.SentVia, p.ExpiresAt)
	return scanCheckIn(row)
}

// MarkConfirmed transitions a PENDING check-in to CONFIRMED.
func (s *Store) MarkConfirmed(ctx context.Context, id uuid.UUID, now time.Time) error {
	return s.setStatus(ctx, id, StatusConfirmed, now)
}

// MarkMissed transitions a PENDING check-in to MISSED.
func (s *Store) MarkMissed(ctx context.Context, id uuid.UUID, now time.Time) error {
	return s.setStatus(ctx, id, StatusMissed, now)
}

// MarkCancelled transitions a PENDING check-in to CANCELLED.
func (s *Store) MarkCancelled(ctx context.Context, id uuid.UUID, now time.Time) error {
	return s.setStatus(ctx, id, StatusCancelled, now)
}

func (s *Store) setStatus(ctx context.Context, id uuid.UUID, status Status, now time.Time) error {
	query := `UPDATE check_ins SET status = $2, responded_at = $3 WHERE id = $1 AND status = 'PENDING'`
	tag, err := s.dbtx.Exec(ctx, query, id, status, now)
	if err != nil {
		return fmt.Errorf("updating check-in status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Expired returns PENDING check-ins whose expiry has passed, up to limit
// rows. It is the scheduler's second subscan.
func (s *Store) Expired(ctx context.Context, now time.Time, limit int) ([]CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins
	WHERE status = 'PENDING' AND expires_at < $1
	ORDER BY expires_at
	LIMIT $2`
	rows, err := s.dbtx.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("listing expired check-ins: %w", err)
	}
	return scanCheckIns(rows)
}
