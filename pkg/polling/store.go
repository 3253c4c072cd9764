package polling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eternalsentinel/sentinel/internal/db"
)

// Store provides database operations for polling configs.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a polling Store backed by the given database connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const configColumns = `id, user_id, interval, email_enabled, sms_enabled,
	grace_period_1_days, grace_period_2_days, grace_period_3_days, missed_before_trigger,
	current_missed_checkins, last_checkin_at, next_checkin_due, status, triggered_at, updated_at`

func scanConfig(row pgx.Row) (Config, error) {
	var c Config
	err := row.Scan(
		&c.ID, &c.UserID, &c.Interval, &c.EmailEnabled, &c.SMSEnabled,
		&c.GracePeriod1Days, &c.GracePeriod2Days, &c.GracePeriod3Days, &c.MissedBeforeTrigger,
		&c.CurrentMissedCheckIns, &c.LastCheckInAt, &c.NextCheckInDue, &c.Status, &c.TriggeredAt, &c.UpdatedAt,
	)
	return c, err
}

func scanConfigs(rows pgx.Rows) ([]Config, error) {
	defer rows.Close()
	var items []Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning polling config row: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating polling config rows: %w", err)
	}
	return items, nil
}

// GetByUserID returns the polling config owned by the given user.
func (s *Store) GetByUserID(ctx context.Context, userID uuid.UUID) (Config, error) {
	query := `SELECT ` + configColumns + ` FROM polling_configs WHERE user_id = $1`
	return scanConfig(s.dbtx.QueryRow(ctx, query, userID))
}

// GetForUpdate returns the polling config owned by the given user, locking
// the row. Callers must be operating inside a transaction; this is how
// confirmCheckIn and the escalation workers serialize concurrent transitions
// on the same config.
func (s *Store) GetForUpdate(ctx context.Context, userID uuid.UUID) (Config, error) {
	query := `SELECT ` + configColumns + ` FROM polling_configs WHERE user_id = $1 FOR UPDATE`
	return scanConfig(s.dbtx.QueryRow(ctx, query, userID))
}

// CreateConfigParams holds parameters for creating a polling config.
type CreateConfigParams struct {
	UserID              uuid.UUID
	Interval            Interval
	EmailEnabled        bool
	SMSEnabled          bool
	GracePeriod1Days    int
	GracePeriod2Days    int
	GracePeriod3Days    int
	MissedBeforeTrigger int
	NextCheckInDue      time.Time
}

// Create inserts a new polling config for a user, in the ACTIVE state.
func (s *Store) Create(ctx context.Context, p CreateConfigParams) (Config, error) {
	query := `INSERT INTO polling_configs
		(user_id, interval, email_enabled, sms_enabled,
		 grace_period_1_days, grace_period_2_days, grace_period_3_days, missed_before_trigger,
		 next_checkin_due)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING ` + configColumns
	row := s.dbtx.QueryRow(ctx, query,
		p.UserID, p.Interval, p.EmailEnabled, p.SMSEnabled,
		p.GracePeriod1Days, p.GracePeriod2Days, p.GracePeriod3Days, p.MissedBeforeTrigger,
		p.NextCheckInDue,
	)
	return scanConfig(row)
}

// UpdateSettingsParams holds the subset of fields a user may edit directly;
// Status, CurrentMissedCheckIns, LastCheckInAt, NextCheckInDue and
// TriggeredAt are only ever changed by Save, since they're owned by the
// state machine, not the settings form. UpdateSettings does stamp UpdatedAt.
type UpdateSettingsParams struct {
	Interval            Interval
	EmailEnabled        bool
	SMSEnabled          bool
	GracePeriod1Days    int
	GracePeriod2Days    int
	GracePeriod3Days    int
	MissedBeforeTrigger int
}

// UpdateSettings updates the editable configuration fields for a user.
func (s *Store) UpdateSettings(ctx context.Context, userID uuid.UUID, p UpdateSettingsParams) (Config, error) {
	query := `UPDATE polling_configs
	SET interval = $2, email_enabled = $3, sms_enabled = $4,
	    grace_period_1_days = $5, grace_period_2_days = $6, grace_period_3_days = $7,
	    missed_before_trigger = $8, updated_at = now()
	WHERE user_id = $1
	RETURNING ` + configColumns
	row := s.dbtx.QueryRow(ctx, query,
		userID, p.Interval, p.EmailEnabled, p.SMSEnabled,
		p.GracePeriod1Days, p.GracePeriod2Days, p.GracePeriod3Days, p.MissedBeforeTrigger,
	)
	return scanConfig(row)
}

// Save persists the full state of a Config, including the fields the state
// machine owns (Status, CurrentMissedCheckIns, LastCheckInAt, NextCheckInDue,
// TriggeredAt, UpdatedAt). It is the only way Step's output is written back.
func (s *Store) Save(ctx context.Context, c Config) error {
	query := `UPDATE polling_configs
	SET status = $2, current_missed_checkins = $3, last_checkin_at = $4,
	    next_checkin_due = $5, triggered_at = $6, updated_at = $7
	WHERE id = $1`
	tag, err := s.dbtx.Exec(ctx, query,
		c.ID, c.Status, c.CurrentMissedCheckIns, c.LastCheckInAt,
		c.NextCheckInDue, c.TriggeredAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving polling config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DueForCheckIn returns active configs whose next check-in has come due, up
// to limit rows. It is the scheduler's first subscan.
func (s *Store) DueForCheckIn(ctx context.Context, now time.Time, limit int) ([]Config, error) {
	query := `SELECT ` + configColumns + ` FROM polling_configs
	WHERE status = 'ACTIVE' AND next_checkin_due <= $1
	ORDER BY next_checkin_due
	LIMIT $2`
	rows, err := s.dbtx.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("listing due polling configs: %w", err)
	}
	return scanConfigs(rows)
}

// StaleGrace3 returns configs that have sat in GRACE_3 since before cutoff,
// the scheduler's hook for detecting a grace-period check-in that expired
// without its own expiry subscan catching it (the dead-letter reconciliation
// pass).
func (s *Store) StaleGrace3(ctx context.Context, cutoff time.Time, limit int) ([]Config, error) {
	query := `SELECT ` + configColumns + ` FROM polling_configs
	WHERE status = 'GRACE_3' AND updated_at <= $1
	ORDER BY updated_at
	LIMIT $2`
	rows, err := s.dbtx.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stale grace-3 polling configs: %w", err)
	}
	return scanConfigs(rows)
}
