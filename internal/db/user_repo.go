package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// UserRepository stores Telegram user profiles and purchase counters.
type UserRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewUserRepository creates a UserRepository backed by the given database
// connection (pool or transaction).
func NewUserRepository(db DBTX, logger *slog.Logger) *UserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserRepository{db: db, logger: logger}
}

// UpsertProfile inserts the user on first contact and refreshes the profile
// fields plus last-activity timestamp on every subsequent one.
func (r *UserRepository) UpsertProfile(ctx context.Context, u types.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (user_id, username, first_name, last_name, language_code)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
		     username         = EXCLUDED.username,
		     first_name       = EXCLUDED.first_name,
		     last_name        = EXCLUDED.last_name,
		     language_code    = EXCLUDED.language_code,
		     last_activity_at = NOW()`,
		u.ID, u.Username, u.FirstName, u.LastName, u.LanguageCode,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert user profile", err)
	}
	return nil
}

// RecordPurchase bumps the user's lifetime purchase counters after a payment
// confirmation has been applied.
func (r *UserRepository) RecordPurchase(ctx context.Context, userID int64, stars int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET total_orders      = total_orders + 1,
		     total_stars_spent = total_stars_spent + $2,
		     last_activity_at  = NOW()
		 WHERE user_id = $1`,
		userID, stars,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record purchase", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user does not exist", nil)
	}
	return nil
}

// Get loads a user profile by Telegram ID.
func (r *UserRepository) Get(ctx context.Context, userID int64) (*types.User, error) {
	var u types.User
	err := r.db.QueryRow(ctx,
		`SELECT user_id, username, first_name, last_name, language_code,
		        registered_at, last_activity_at, total_orders, total_stars_spent
		 FROM users WHERE user_id = $1`,
		userID,
	).Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.LanguageCode,
		&u.RegisteredAt,
		&u.LastActivityAt,
		&u.TotalOrders,
		&u.TotalStarsSpent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user does not exist", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load user", err)
	}
	return &u, nil
}
