package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
	"go.uber.org/zap"
)

// StateCommentRepository implements port.StateCommentRepository
type StateCommentRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewStateCommentRepository creates a new state comment repository
func NewStateCommentRepository(db *sqldb.DB, logger *zap.Logger) port.StateCommentRepository {
	return &StateCommentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a predefined comment
func (r *StateCommentRepository) Create(ctx context.Context, c *entity.StateComment) error {
	c.CreatedAt = stamp(c.CreatedAt)

	query := `INSERT INTO state_comments (state_id, comment, created_at) VALUES (?, ?, ?)`

	id, err := insertReturningID(ctx, r.db.Executor(ctx), query, c.StateID, c.Comment, c.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create state comment", zap.Int64("state_id", c.StateID), zap.Error(err))
		return fmt.Errorf("failed to create state comment: %w", err)
	}

	c.ID = id
	return nil
}

// GetByID retrieves a comment by id
func (r *StateCommentRepository) GetByID(ctx context.Context, id int64) (*entity.StateComment, error) {
	query := `SELECT id, state_id, comment, created_at FROM state_comments WHERE id = ?`

	var c entity.StateComment
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(&c.ID, &c.StateID, &c.Comment, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get state comment", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get state comment: %w", err)
	}
	return &c, nil
}

// ListByState returns the comments attached to a state in insertion order
func (r *StateCommentRepository) ListByState(ctx context.Context, stateID int64) ([]*entity.StateComment, error) {
	query := `
		SELECT id, state_id, comment, created_at
		FROM state_comments
		WHERE state_id = ?
		ORDER BY id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, stateID)
	if err != nil {
		r.logger.Error("Failed to list state comments", zap.Int64("state_id", stateID), zap.Error(err))
		return nil, fmt.Errorf("failed to list state comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*entity.StateComment, 0)
	for rows.Next() {
		var c entity.StateComment
		if err := rows.Scan(&c.ID, &c.StateID, &c.Comment, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan state comment: %w", err)
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// Verify interface compliance
var _ port.StateCommentRepository = (*StateCommentRepository)(nil)
