package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/eternalsentinel/sentinel/pkg/polling"
)

// defaultGracePeriod1Days, defaultGracePeriod2Days, and defaultGracePeriod3Days
// are spec's stated grace-period defaults (7/14/7) for a newly created user's
// polling config.
const (
	defaultGracePeriod1Days    = 7
	defaultGracePeriod2Days    = 14
	defaultGracePeriod3Days    = 7
	defaultMissedBeforeTrigger = 3
)

// Service encapsulates user business logic.
type Service struct {
	pool   *pgxpool.Pool
	store  *Store
	logger *slog.Logger
}

// NewService creates a user Service backed by the given database pool. A
// pool, not just db.DBTX, is required because Create opens its own
// transaction spanning both the users and polling_configs tables.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{
		pool:   pool,
		store:  NewStore(pool),
		logger: logger,
	}
}

// List returns all active users.
func (s *Service) List(ctx context.Context) ([]Response, error) {
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	items := make([]Response, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToResponse())
	}
	return items, nil
}

// Get returns a single user by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Response, error) {
	row, err := s.store.Get(ctx, id)
	if err != nil {
		return Response{}, fmt.Errorf("getting user: %w", err)
	}
	return row.ToResponse(), nil
}

// Create creates a new user and its polling config atomically: spec.md's
// ownership invariant ("owns exactly one PollingConfig") means a user must
// never exist without one, so both rows commit together or neither does.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Response, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Response{}, fmt.Errorf("hashing password: %w", err)
	}
	hashStr := string(hash)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row, err := NewStore(tx).Create(ctx, CreateUserParams{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: &hashStr,
		Role:         req.Role,
	})
	if err != nil {
		return Response{}, fmt.Errorf("creating user: %w", err)
	}

	interval := polling.Interval(req.Interval)
	now := time.Now().UTC()
	_, err = polling.NewStore(tx).Create(ctx, polling.CreateConfigParams{
		UserID:              row.ID,
		Interval:            interval,
		EmailEnabled:        req.EmailEnabled,
		SMSEnabled:          req.SMSEnabled,
		GracePeriod1Days:    defaultInt(req.GracePeriod1Days, defaultGracePeriod1Days),
		GracePeriod2Days:    defaultInt(req.GracePeriod2Days, defaultGracePeriod2Days),
		GracePeriod3Days:    defaultInt(req.GracePeriod3Days, defaultGracePeriod3Days),
		MissedBeforeTrigger: defaultInt(req.MissedBeforeTrigger, defaultMissedBeforeTrigger),
		NextCheckInDue:      now.Add(interval.Duration()),
	})
	if err != nil {
		return Response{}, fmt.Errorf("creating polling config: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Response{}, fmt.Errorf("committing user creation: %w", err)
	}

	return row.ToResponse(), nil
}

// defaultInt returns v if positive, otherwise def.
func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// UpdatePollingConfig updates the editable settings of a user's polling
// config. Status, CurrentMissedCheckIns, LastCheckInAt, NextCheckInDue and
// TriggeredAt are untouched — those only ever change via polling.Step/Save;
// UpdatedAt is stamped with the time of the update.
func (s *Service) UpdatePollingConfig(ctx context.Context, userID uuid.UUID, req UpdatePollingConfigRequest) (PollingConfigResponse, error) {
	cfg, err := polling.NewStore(s.pool).UpdateSettings(ctx, userID, polling.UpdateSettingsParams{
		Interval:            polling.Interval(req.Interval),
		EmailEnabled:        req.EmailEnabled,
		SMSEnabled:          req.SMSEnabled,
		GracePeriod1Days:    req.GracePeriod1Days,
		GracePeriod2Days:    req.GracePeriod2Days,
		GracePeriod3Days:    req.GracePeriod3Days,
		MissedBeforeTrigger: req.MissedBeforeTrigger,
	})
	if err != nil {
		return PollingConfigResponse{}, fmt.Errorf("updating polling config: %w", err)
	}
	return toPollingConfigResponse(cfg), nil
}

func toPollingConfigResponse(cfg polling.Config) PollingConfigResponse {
	return PollingConfigResponse{
		Interval:            string(cfg.Interval),
		EmailEnabled:        cfg.EmailEnabled,
		SMSEnabled:          cfg.SMSEnabled,
		GracePeriod1Days:    cfg.GracePeriod1Days,
		GracePeriod2Days:    cfg.GracePeriod2Days,
		GracePeriod3Days:    cfg.GracePeriod3Days,
		MissedBeforeTrigger: cfg.MissedBeforeTrigger,
		Status:              string(cfg.Status),
		NextCheckInDue:      cfg.NextCheckInDue,
	}
}

// Update updates a user.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Response, error) {
	row, err := s.store.Update(ctx, id, UpdateUserParams(req))
	if err != nil {
		return Response{}, fmt.Errorf("updating user: %w", err)
	}
	return row.ToResponse(), nil
}

// Deactivate soft-deletes a user.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}
	return nil
}
