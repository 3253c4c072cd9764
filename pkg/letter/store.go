package letter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eternalsentinel/sentinel/internal/db"
)

// Store provides database operations for final letters.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a final-letter Store backed by the given database connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const letterColumns = `id, user_id, recipient_name, recipient_email, subject,
	encrypted_body, nonce, status, delivered_at`

func scanLetter(row pgx.Row) (FinalLetter, error) {
	var l FinalLetter
	err := row.Scan(&l.ID, &l.UserID, &l.RecipientName, &l.RecipientEmail, &l.Subject,
		&l.EncryptedBody, &l.Nonce, &l.Status, &l.DeliveredAt)
	return l, err
}

func scanLetters(rows pgx.Rows) ([]FinalLetter, error) {
	defer rows.Close()
	var items []FinalLetter
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning final letter row: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating final letter rows: %w", err)
	}
	return items, nil
}

// ListByUser returns every letter belonging to a user.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]FinalLetter, error) {
	query := `SELECT ` + letterColumns + ` FROM final_letters WHERE user_id = $1 ORDER BY subject`
	rows, err := s.dbtx.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing final letters: %w", err)
	}
	return scanLetters(rows)
}

// ReadyByUser returns every READY letter for a user, locking the rows. Used
// by the release worker within its transaction.
func (s *Store) ReadyByUser(ctx context.Context, userID uuid.UUID) ([]FinalLetter, error) {
	query := `SELECT ` + letterColumns + ` FROM final_letters
	WHERE user_id = $1 AND status = 'READY'
	ORDER BY subject
	FOR UPDATE`
	rows, err := s.dbtx.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing ready final letters: %w", err)
	}
	return scanLetters(rows)
}

// CreateParams holds parameters for creating a final letter.
type CreateParams struct {
	UserID         uuid.UUID
	RecipientName  string
	RecipientEmail string
	Subject        string
	EncryptedBody  []byte
	Nonce          []byte
}

// Create inserts a new DRAFT letter.
func (s *Store) Create(ctx context.Context, p CreateParams) (FinalLetter, error) {
	query := `INSERT INTO final_letters
		(user_id, recipient_name, recipient_email, subject, encrypted_body, nonce)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + letterColumns
	row := s.dbtx.QueryRow(ctx, query, p.UserID, p.RecipientName, p.RecipientEmail, p.Subject, p.EncryptedBody, p.Nonce)
	return scanLetter(row)
}

// MarkReady transitions a DRAFT letter owned by userID to READY.
func (s *Store) MarkReady(ctx context.Context, id, userID uuid.UUID) error {
	query := `UPDATE final_letters SET status = 'READY' WHERE id = $1 AND user_id = $2 AND status = 'DRAFT'`
	tag, err := s.dbtx.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("marking letter ready: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkDelivered transitions a READY letter to DELIVERED. Idempotent: a
// second call against an already-DELIVERED letter is a no-op, matching the
// release worker's keyed-by-letter-id follow-up transaction.
func (s *Store) MarkDelivered(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `UPDATE final_letters SET status = 'DELIVERED', delivered_at = $2
	WHERE id = $1 AND status = 'READY'`
	_, err := s.dbtx.Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("marking letter delivered: %w", err)
	}
	return nil
}

// ReadyWithoutDeliveryRecord returns letters stuck READY past a cutoff, the
// dead-letter reconciliation sweep's input for letters whose delivery email
// was enqueued but never confirmed.
func (s *Store) ReadyWithoutDeliveryRecord(ctx context.Context, cutoff time.Time, limit int) ([]FinalLetter, error) {
	query := `SELECT ` + letterColumns + ` FROM final_letters l
	JOIN polling_configs pc ON pc.user_id = l.user_id
	WHERE l.status = 'READY' AND pc.status = 'TRIGGERED' AND pc.triggered_at <= $1
	ORDER BY pc.triggered_at
	LIMIT $2`
	rows, err := s.dbtx.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stuck final letters: %w", err)
	}
	return scanLetters(rows)
}
