package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/vehicle-service-tracker/pkg/database"
	"go.uber.org/zap"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqldb.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	u.CreatedAt = stamp(u.CreatedAt)
	query := `INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`

	id, err := insertReturningID(ctx, r.db.Executor(ctx), query, u.Username, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: username %q", entity.ErrAlreadyExists, u.Username)
		}
		r.logger.Error("Failed to create user", zap.String("username", u.Username), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.ID = id
	return nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.getOne(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
}

// GetByUsername retrieves a user by login name
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.User, error) {
	var u entity.User
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// RefreshTokenRepository implements port.RefreshTokenRepository
type RefreshTokenRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *sqldb.DB, logger *zap.Logger) port.RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, logger: logger}
}

// Create persists an issued refresh token
func (r *RefreshTokenRepository) Create(ctx context.Context, t *entity.RefreshToken) error {
	t.CreatedAt = stamp(t.CreatedAt)
	query := `
		INSERT INTO refresh_tokens (token_id, user_id, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?)`

	id, err := insertReturningID(ctx, r.db.Executor(ctx), query, t.TokenID, t.UserID, t.ExpiresAt.UTC(), t.Revoked, t.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to store refresh token", zap.Int64("user_id", t.UserID), zap.Error(err))
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	t.ID = id
	return nil
}

// GetByTokenID retrieves a refresh token by its jti
func (r *RefreshTokenRepository) GetByTokenID(ctx context.Context, tokenID string) (*entity.RefreshToken, error) {
	query := `
		SELECT id, token_id, user_id, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE token_id = ?`

	var t entity.RefreshToken
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, tokenID).Scan(
		&t.ID, &t.TokenID, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get refresh token", zap.Error(err))
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &t, nil
}

// Revoke marks a token revoked; false means it was unknown or already revoked
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenID string) (bool, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = ? WHERE token_id = ? AND revoked = ?`, true, tokenID, false)
	if err != nil {
		r.logger.Error("Failed to revoke refresh token", zap.Error(err))
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return affectedOne(result)
}

// RevokeAllForUser revokes every outstanding token of a user
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = ? WHERE user_id = ? AND revoked = ?`, true, userID, false)
	if err != nil {
		r.logger.Error("Failed to revoke user tokens", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens that can no longer be used
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ? OR revoked = ?`, before.UTC(), true)
	if err != nil {
		r.logger.Error("Failed to purge refresh tokens", zap.Error(err))
		return 0, fmt.Errorf("failed to purge refresh tokens: %w", err)
	}
	return result.RowsAffected()
}

// Verify interface compliance
var (
	_ port.UserRepository         = (*UserRepository)(nil)
	_ port.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
)
