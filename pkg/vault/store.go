package vault

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eternalsentinel/sentinel/internal/db"
)

// Store provides database operations for vault items.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a vault Store backed by the given database connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const itemColumns = `id, user_id, type, name, encrypted_data, nonce, metadata,
	encrypted_master_key, master_key_salt, master_key_nonce, created_at`

type itemRow struct {
	Item
	encryptedMasterKey *string
	masterKeySalt      *string
	masterKeyNonce     *string
}

func scanItemRow(row pgx.Row) (itemRow, error) {
	var r itemRow
	err := row.Scan(
		&r.ID, &r.UserID, &r.Type, &r.Name, &r.EncryptedData, &r.Nonce, &r.Metadata,
		&r.encryptedMasterKey, &r.masterKeySalt, &r.masterKeyNonce, &r.CreatedAt,
	)
	return r, err
}

// ListByUser returns every vault item belonging to a user, along with the
// wrapped master key material (read from whichever row carries it — every
// item for a user is encrypted under the same master key, so any non-null
// row supplies it).
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]Item, MasterKey, error) {
	query := `SELECT ` + itemColumns + ` FROM vault_items WHERE user_id = $1 ORDER BY created_at`
	rows, err := s.dbtx.Query(ctx, query, userID)
	if err != nil {
		return nil, MasterKey{}, fmt.Errorf("listing vault items: %w", err)
	}
	defer rows.Close()

	var items []Item
	var key MasterKey
	for rows.Next() {
		r, err := scanItemRow(rows)
		if err != nil {
			return nil, MasterKey{}, fmt.Errorf("scanning vault item row: %w", err)
		}
		items = append(items, r.Item)
		if key.EncryptedMasterKey == "" && r.encryptedMasterKey != nil {
			key = MasterKey{
				EncryptedMasterKey: *r.encryptedMasterKey,
				MasterKeySalt:      derefOr(r.masterKeySalt),
				MasterKeyNonce:     derefOr(r.masterKeyNonce),
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, MasterKey{}, fmt.Errorf("iterating vault item rows: %w", err)
	}
	return items, key, nil
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreateParams holds parameters for creating a vault item.
type CreateParams struct {
	UserID             uuid.UUID
	Type               string
	Name               string
	EncryptedData      []byte
	Nonce              []byte
	Metadata           []byte
	EncryptedMasterKey string
	MasterKeySalt      string
	MasterKeyNonce     string
}

// Create inserts a new vault item, stamping it with the user's master key
// wrap material (duplicated per-row per the schema; every item for a user
// carries the same key envelope).
func (s *Store) Create(ctx context.Context, p CreateParams) (Item, error) {
	query := `INSERT INTO vault_items
		(user_id, type, name, encrypted_data, nonce, metadata,
		 encrypted_master_key, master_key_salt, master_key_nonce)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING ` + itemColumns
	row := s.dbtx.QueryRow(ctx, query,
		p.UserID, p.Type, p.Name, p.EncryptedData, p.Nonce, p.Metadata,
		p.EncryptedMasterKey, p.MasterKeySalt, p.MasterKeyNonce,
	)
	r, err := scanItemRow(row)
	if err != nil {
		return Item{}, fmt.Errorf("creating vault item: %w", err)
	}
	return r.Item, nil
}

// Delete removes a vault item owned by the given user.
func (s *Store) Delete(ctx context.Context, userID, itemID uuid.UUID) error {
	query := `DELETE FROM vault_items WHERE id = $1 AND user_id = $2`
	tag, err := s.dbtx.Exec(ctx, query, itemID, userID)
	if err != nil {
		return fmt.Errorf("deleting vault item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
