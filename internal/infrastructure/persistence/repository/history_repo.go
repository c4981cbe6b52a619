package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqldb.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a ledger entry
func (r *HistoryRepository) Create(ctx context.Context, entry *entity.StateHistoryEntry) error {
	entry.Timestamp = stamp(entry.Timestamp)

	query := `
		INSERT INTO state_history (
			vehicle_id, from_state_id, to_state_id, user_id, comment_id, changed_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	id, err := insertReturningID(ctx, r.db.Executor(ctx), query,
		entry.VehicleID,
		nullInt64(entry.FromStateID),
		entry.ToStateID,
		entry.UserID,
		nullInt64(entry.CommentID),
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Int64("vehicle_id", entry.VehicleID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByVehicle retrieves the ledger of a vehicle oldest first
func (r *HistoryRepository) ListByVehicle(ctx context.Context, vehicleID int64) ([]*entity.StateHistoryEntry, error) {
	query := `
		SELECT id, vehicle_id, from_state_id, to_state_id, user_id, comment_id, changed_at
		FROM state_history
		WHERE vehicle_id = ?
		ORDER BY changed_at ASC, id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, vehicleID)
	if err != nil {
		r.logger.Error("Failed to get history by vehicle ID", zap.Int64("vehicle_id", vehicleID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.StateHistoryEntry, 0)
	for rows.Next() {
		var (
			record    entity.StateHistoryEntry
			fromState sql.NullInt64
			commentID sql.NullInt64
		)
		err := rows.Scan(
			&record.ID,
			&record.VehicleID,
			&fromState,
			&record.ToStateID,
			&record.UserID,
			&commentID,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.FromStateID = int64Ptr(fromState)
		record.CommentID = int64Ptr(commentID)
		records = append(records, &record)
	}

	return records, rows.Err()
}

// DeleteByVehicle removes the ledger of a vehicle
func (r *HistoryRepository) DeleteByVehicle(ctx context.Context, vehicleID int64) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM state_history WHERE vehicle_id = ?`, vehicleID)
	if err != nil {
		r.logger.Error("Failed to delete history", zap.Int64("vehicle_id", vehicleID), zap.Error(err))
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
