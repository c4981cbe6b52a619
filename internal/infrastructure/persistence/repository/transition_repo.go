package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/vehicle-service-tracker/pkg/database"
	"go.uber.org/zap"
)

const transitionColumns = `id, from_state_id, to_state_id, condition, action, active, created_at`

// TransitionRepository implements port.TransitionRepository
type TransitionRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewTransitionRepository creates a new transition repository
func NewTransitionRepository(db *sqldb.DB, logger *zap.Logger) port.TransitionRepository {
	return &TransitionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a transition
func (r *TransitionRepository) Create(ctx context.Context, t *entity.Transition) error {
	t.CreatedAt = stamp(t.CreatedAt)

	query := `
		INSERT INTO transitions (from_state_id, to_state_id, condition, action, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	id, err := insertReturningID(ctx, r.db.Executor(ctx), query,
		t.FromStateID, t.ToStateID, t.Condition, t.Action, t.Active, t.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: transition %d -> %d", entity.ErrAlreadyExists, t.FromStateID, t.ToStateID)
		}
		r.logger.Error("Failed to create transition",
			zap.Int64("from_state_id", t.FromStateID),
			zap.Int64("to_state_id", t.ToStateID),
			zap.Error(err))
		return fmt.Errorf("failed to create transition: %w", err)
	}

	t.ID = id
	return nil
}

// GetActive returns the active transition between two states, or nil
func (r *TransitionRepository) GetActive(ctx context.Context, fromStateID, toStateID int64) (*entity.Transition, error) {
	query := `
		SELECT ` + transitionColumns + `
		FROM transitions
		WHERE from_state_id = ? AND to_state_id = ? AND active = ?`

	t, err := scanTransition(r.db.Executor(ctx).QueryRowContext(ctx, query, fromStateID, toStateID, true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get transition",
			zap.Int64("from_state_id", fromStateID),
			zap.Int64("to_state_id", toStateID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get transition: %w", err)
	}
	return t, nil
}

// ListActiveFrom returns active transitions leaving a state
func (r *TransitionRepository) ListActiveFrom(ctx context.Context, fromStateID int64) ([]*entity.Transition, error) {
	query := `
		SELECT ` + transitionColumns + `
		FROM transitions
		WHERE from_state_id = ? AND active = ?
		ORDER BY id ASC`
	return r.list(ctx, query, fromStateID, true)
}

// ListAll returns every transition, active or not
func (r *TransitionRepository) ListAll(ctx context.Context) ([]*entity.Transition, error) {
	return r.list(ctx, `SELECT `+transitionColumns+` FROM transitions ORDER BY id ASC`)
}

func (r *TransitionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Transition, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transitions", zap.Error(err))
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	transitions := make([]*entity.Transition, 0)
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

func scanTransition(row rowScanner) (*entity.Transition, error) {
	var t entity.Transition
	if err := row.Scan(&t.ID, &t.FromStateID, &t.ToStateID, &t.Condition, &t.Action, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// Verify interface compliance
var _ port.TransitionRepository = (*TransitionRepository)(nil)
