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

const stateColumns = `id, code, name, description, is_initial, is_final, display_order,
	active, icon, color, category, created_at, updated_at`

// StateRepository implements port.StateRepository
type StateRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewStateRepository creates a new state repository
func NewStateRepository(db *sqldb.DB, logger *zap.Logger) port.StateRepository {
	return &StateRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a state
func (r *StateRepository) Create(ctx context.Context, s *entity.State) error {
	s.CreatedAt = stamp(s.CreatedAt)
	s.UpdatedAt = s.CreatedAt

	query := `
		INSERT INTO states (
			code, name, description, is_initial, is_final, display_order,
			active, icon, color, category, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := insertReturningID(ctx, r.db.Executor(ctx), query,
		s.Code, s.Name, s.Description, s.IsInitial, s.IsFinal, s.DisplayOrder,
		s.Active, s.Icon, s.Color, s.Category, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: state %q or a second initial state", entity.ErrAlreadyExists, s.Code)
		}
		r.logger.Error("Failed to create state", zap.String("code", s.Code), zap.Error(err))
		return fmt.Errorf("failed to create state: %w", err)
	}

	s.ID = id
	return nil
}

// GetByID retrieves a state by id
func (r *StateRepository) GetByID(ctx context.Context, id int64) (*entity.State, error) {
	query := `SELECT ` + stateColumns + ` FROM states WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByCode retrieves a state by its unique code
func (r *StateRepository) GetByCode(ctx context.Context, code string) (*entity.State, error) {
	query := `SELECT ` + stateColumns + ` FROM states WHERE code = ?`
	return r.getOne(ctx, query, code)
}

// List returns all states ordered for display
func (r *StateRepository) List(ctx context.Context) ([]*entity.State, error) {
	query := `SELECT ` + stateColumns + ` FROM states ORDER BY display_order ASC, id ASC`
	return r.list(ctx, query)
}

// GetInitial returns every state flagged initial
func (r *StateRepository) GetInitial(ctx context.Context) ([]*entity.State, error) {
	query := `SELECT ` + stateColumns + ` FROM states WHERE is_initial = ? ORDER BY id ASC`
	return r.list(ctx, query, true)
}

func (r *StateRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.State, error) {
	s, err := scanState(r.db.Executor(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get state", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	return s, nil
}

func (r *StateRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.State, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list states", zap.Error(err))
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	defer rows.Close()

	states := make([]*entity.State, 0)
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

func scanState(row rowScanner) (*entity.State, error) {
	var s entity.State
	err := row.Scan(
		&s.ID, &s.Code, &s.Name, &s.Description, &s.IsInitial, &s.IsFinal, &s.DisplayOrder,
		&s.Active, &s.Icon, &s.Color, &s.Category, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Verify interface compliance
var _ port.StateRepository = (*StateRepository)(nil)
