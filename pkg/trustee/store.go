package trustee

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eternalsentinel/sentinel/internal/db"
)

// Store provides database operations for trustees.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a trustee Store backed by the given database connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const trusteeColumns = `id, user_id, name, email, phone, relationship, status,
	verification_token, verified_at, access_token, access_granted_at, access_expires_at`

func scanTrustee(row pgx.Row) (Trustee, error) {
	var t Trustee
	err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Email, &t.Phone, &t.Relationship, &t.Status,
		&t.VerificationToken, &t.VerifiedAt, &t.AccessToken, &t.AccessGrantedAt, &t.AccessExpiresAt,
	)
	return t, err
}

func scanTrustees(rows pgx.Rows) ([]Trustee, error) {
	defer rows.Close()
	var items []Trustee
	for rows.Next() {
		t, err := scanTrustee(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trustee row: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trustee rows: %w", err)
	}
	return items, nil
}

// ListByUser returns every trustee belonging to a user.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]Trustee, error) {
	query := `SELECT ` + trusteeColumns + ` FROM trustees WHERE user_id = $1 ORDER BY name`
	rows, err := s.dbtx.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing trustees: %w", err)
	}
	return scanTrustees(rows)
}

// ReleaseEligibleByUser returns every VERIFIED or ACTIVE trustee belonging to
// a user, locking the rows. Used by the release worker within its transaction.
func (s *Store) ReleaseEligibleByUser(ctx context.Context, userID uuid.UUID) ([]Trustee, error) {
	query := `SELECT ` + trusteeColumns + ` FROM trustees
	WHERE user_id = $1 AND status IN ('VERIFIED', 'ACTIVE')
	ORDER BY name
	FOR UPDATE`
	rows, err := s.dbtx.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing release-eligible trustees: %w", err)
	}
	return scanTrustees(rows)
}

// Get returns a single trustee by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Trustee, error) {
	query := `SELECT ` + trusteeColumns + ` FROM trustees WHERE id = $1`
	return scanTrustee(s.dbtx.QueryRow(ctx, query, id))
}

// GetByVerificationToken returns a trustee by its single-use verification token.
func (s *Store) GetByVerificationToken(ctx context.Context, tok string) (Trustee, error) {
	query := `SELECT ` + trusteeColumns + ` FROM trustees WHERE verification_token = $1`
	return scanTrustee(s.dbtx.QueryRow(ctx, query, tok))
}

// GetByAccessToken returns a trustee by its access token.
func (s *Store) GetByAccessToken(ctx context.Context, tok string) (Trustee, error) {
	query := `SELECT ` + trusteeColumns + ` FROM trustees WHERE access_token = $1`
	return scanTrustee(s.dbtx.QueryRow(ctx, query, tok))
}

// CreateParams holds parameters for creating a trustee.
type CreateParams struct {
	UserID            uuid.UUID
	Name              string
	Email             string
	Phone             *string
	Relationship      *string
	VerificationToken string
}

// Create inserts a new PENDING trustee.
func (s *Store) Create(ctx context.Context, p CreateParams) (Trustee, error) {
	query := `INSERT INTO trustees (user_id, name, email, phone, relationship, verification_token)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + trusteeColumns
	row := s.dbtx.QueryRow(ctx, query, p.UserID, p.Name, p.Email, p.Phone, p.Relationship, p.VerificationToken)
	return scanTrustee(row)
}

// Verify clears the verification token and moves a PENDING trustee to
// VERIFIED. The unique constraint on verification_token prevents replay once
// it is cleared: a second attempt finds no matching row.
func (s *Store) Verify(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `UPDATE trustees
	SET status = 'VERIFIED', verification_token = NULL, verified_at = $2
	WHERE id = $1 AND status = 'PENDING'`
	tag, err := s.dbtx.Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("verifying trustee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GrantAccess mints an access grant for a release-eligible trustee. Called
// only from within the release worker's transaction.
func (s *Store) GrantAccess(ctx context.Context, id uuid.UUID, accessToken string, grantedAt, expiresAt time.Time) error {
	query := `UPDATE trustees
	SET status = 'ACTIVE', access_token = $2, access_granted_at = $3, access_expires_at = $4
	WHERE id = $1`
	tag, err := s.dbtx.Exec(ctx, query, id, accessToken, grantedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("granting trustee access: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Revoke moves a trustee to REVOKED from any status, the administrative
// override the data model allows for but spec.md's external interfaces never
// mint a route to reach.
func (s *Store) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE trustees SET status = 'REVOKED', access_token = NULL WHERE id = $1`
	tag, err := s.dbtx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("revoking trustee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AccessGrantedWithoutNotification returns trustees whose access token is set
// but who have no matching AuditLog(ACCESS_NOTIFIED) entry — the dead-letter
// reconciliation sweep's input.
func (s *Store) AccessGrantedWithoutNotification(ctx context.Context, limit int) ([]Trustee, error) {
	query := `SELECT ` + trusteeColumns + ` FROM trustees t
	WHERE t.access_token IS NOT NULL
	AND NOT EXISTS (
		SELECT 1 FROM audit_log a
		WHERE a.kind = 'ACCESS_NOTIFIED' AND a.detail->>'trustee_id' = t.id::text
	)
	ORDER BY t.access_granted_at
	LIMIT $1`
	rows, err := s.dbtx.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unnotified trustee access grants: %w", err)
	}
	return scanTrustees(rows)
}
