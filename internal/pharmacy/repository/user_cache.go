package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/careops/careops-backend/pkg/database"
	"github.com/careops/careops-backend/pkg/errors"
)

// CachedUser is a local projection of the user service's data, kept
// fresh by the user events consumer. It lets list endpoints resolve
// display names without a cross-service call.
type CachedUser struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	RoleName  *string   `db:"role_name" json:"role_name,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UserCacheRepository handles the local user projection
type UserCacheRepository struct {
	db *database.DB
}

// NewUserCacheRepository creates a new user cache repository
func NewUserCacheRepository(db *database.DB) *UserCacheRepository {
	return &UserCacheRepository{db: db}
}

// Set upserts a cached user
func (r *UserCacheRepository) Set(ctx context.Context, u *CachedUser) error {
	query := `
		INSERT INTO user_cache (user_id, name, email, role_name, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    role_name = EXCLUDED.role_name,
		    updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, u.UserID, u.Name, u.Email, u.RoleName)
	return err
}

// Get gets a cached user by ID
func (r *UserCacheRepository) Get(ctx context.Context, userID string) (*CachedUser, error) {
	var u CachedUser
	query := `SELECT user_id, name, email, role_name, updated_at FROM user_cache WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &u, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}
	return &u, nil
}

// Delete removes a cached user
func (r *UserCacheRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_cache WHERE user_id = $1`, userID)
	return err
}
