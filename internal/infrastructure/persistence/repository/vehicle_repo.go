package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/vehicle-service-tracker/pkg/database"
	"go.uber.org/zap"
)

const (
	vehicleColumns = `v.id, v.vehicle_model_id, v.color_id, v.vin, v.is_urgent, v.state_id, v.created_at, v.updated_at`

	defaultVehicleListLimit = 100
)

// VehicleRepository implements port.VehicleRepository
type VehicleRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *sqldb.DB, logger *zap.Logger) port.VehicleRepository {
	return &VehicleRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a vehicle
func (r *VehicleRepository) Create(ctx context.Context, v *entity.Vehicle) error {
	v.CreatedAt = stamp(v.CreatedAt)
	v.UpdatedAt = v.CreatedAt

	query := `
		INSERT INTO vehicles (vehicle_model_id, color_id, vin, is_urgent, state_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	id, err := insertReturningID(ctx, r.db.Executor(ctx), query,
		v.ModelID, v.ColorID, v.VIN, v.IsUrgent, nullInt64(v.StateID), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: vehicle with VIN %s", entity.ErrAlreadyExists, v.VIN)
		}
		r.logger.Error("Failed to create vehicle", zap.String("vin", v.VIN), zap.Error(err))
		return fmt.Errorf("failed to create vehicle: %w", err)
	}

	v.ID = id
	return nil
}

// GetByID retrieves a vehicle by id
func (r *VehicleRepository) GetByID(ctx context.Context, id int64) (*entity.Vehicle, error) {
	return r.getOne(ctx, `SELECT `+vehicleColumns+` FROM vehicles v WHERE v.id = ?`, id)
}

// GetByIDForUpdate retrieves a vehicle and locks its row on dialects that support it
func (r *VehicleRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entity.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles v WHERE v.id = ?` + r.db.Dialect().ForUpdate()
	return r.getOne(ctx, query, id)
}

// GetByVIN retrieves a vehicle by VIN
func (r *VehicleRepository) GetByVIN(ctx context.Context, vin string) (*entity.Vehicle, error) {
	return r.getOne(ctx, `SELECT `+vehicleColumns+` FROM vehicles v WHERE v.vin = ?`, vin)
}

// List returns vehicles matching the filter ordered by id
func (r *VehicleRepository) List(ctx context.Context, filter entity.VehicleFilter) ([]*entity.Vehicle, error) {
	var (
		b    strings.Builder
		args []interface{}
	)
	b.WriteString(`SELECT ` + vehicleColumns + ` FROM vehicles v`)
	if filter.InProgress {
		b.WriteString(` JOIN states s ON s.id = v.state_id`)
	}
	b.WriteString(` WHERE 1 = 1`)
	if filter.InProgress {
		b.WriteString(` AND s.is_final = ?`)
		args = append(args, false)
	}
	if filter.VIN != "" {
		b.WriteString(` AND LOWER(v.vin) LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(filter.VIN))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultVehicleListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(` ORDER BY v.id ASC LIMIT ? OFFSET ?`)
	args = append(args, limit, offset)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, b.String(), args...)
	if err != nil {
		r.logger.Error("Failed to list vehicles", zap.Error(err))
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := make([]*entity.Vehicle, 0)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// Update persists the descriptive fields of a vehicle. The state column is
// owned by the lifecycle engine and is not touched here.
func (r *VehicleRepository) Update(ctx context.Context, v *entity.Vehicle) error {
	v.UpdatedAt = stamp(v.UpdatedAt)

	query := `
		UPDATE vehicles
		SET vehicle_model_id = ?, color_id = ?, vin = ?, is_urgent = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		v.ModelID, v.ColorID, v.VIN, v.IsUrgent, v.UpdatedAt, v.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: vehicle with VIN %s", entity.ErrAlreadyExists, v.VIN)
		}
		r.logger.Error("Failed to update vehicle", zap.Int64("vehicle_id", v.ID), zap.Error(err))
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	return requireRow(result, "vehicle", v.ID)
}

// SetInitialState assigns the first state of a vehicle that has none
func (r *VehicleRepository) SetInitialState(ctx context.Context, id, stateID int64, at time.Time) (bool, error) {
	query := `UPDATE vehicles SET state_id = ?, updated_at = ? WHERE id = ? AND state_id IS NULL`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, stateID, stamp(at), id)
	if err != nil {
		r.logger.Error("Failed to set initial vehicle state", zap.Int64("vehicle_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to set initial state: %w", err)
	}
	return affectedOne(result)
}

// UpdateStateIfCurrent is a compare-and-swap on the vehicle's state column
func (r *VehicleRepository) UpdateStateIfCurrent(ctx context.Context, id, expectedStateID, newStateID int64, at time.Time) (bool, error) {
	query := `UPDATE vehicles SET state_id = ?, updated_at = ? WHERE id = ? AND state_id = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, newStateID, stamp(at), id, expectedStateID)
	if err != nil {
		r.logger.Error("Failed to update vehicle state",
			zap.Int64("vehicle_id", id),
			zap.Int64("expected_state_id", expectedStateID),
			zap.Int64("new_state_id", newStateID),
			zap.Error(err))
		return false, fmt.Errorf("failed to update vehicle state: %w", err)
	}
	return affectedOne(result)
}

// Delete removes a vehicle
func (r *VehicleRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete vehicle", zap.Int64("vehicle_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	return requireRow(result, "vehicle", id)
}

// Count returns the number of registered vehicles
func (r *VehicleRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM vehicles`)
}

// CountInProgress returns the number of vehicles whose current state is not final
func (r *VehicleRepository) CountInProgress(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM vehicles v JOIN states s ON s.id = v.state_id WHERE s.is_final = ?`
	return r.count(ctx, query, false)
}

// ListCreatedSince returns the registration timestamps at or after since
func (r *VehicleRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	query := `SELECT created_at FROM vehicles WHERE created_at >= ? ORDER BY created_at ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, since.UTC())
	if err != nil {
		r.logger.Error("Failed to list vehicle registrations", zap.Error(err))
		return nil, fmt.Errorf("failed to list vehicle registrations: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan registration time: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *VehicleRepository) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		r.logger.Error("Failed to count vehicles", zap.Error(err))
		return 0, fmt.Errorf("failed to count vehicles: %w", err)
	}
	return n, nil
}

func (r *VehicleRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Vehicle, error) {
	v, err := scanVehicle(r.db.Executor(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get vehicle", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return v, nil
}

func scanVehicle(row rowScanner) (*entity.Vehicle, error) {
	var (
		v       entity.Vehicle
		stateID sql.NullInt64
	)
	err := row.Scan(&v.ID, &v.ModelID, &v.ColorID, &v.VIN, &v.IsUrgent, &stateID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.StateID = int64Ptr(stateID)
	return &v, nil
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func requireRow(result sql.Result, kind string, id int64) error {
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %d", entity.ErrNotFound, kind, id)
	}
	return nil
}

// Verify interface compliance
var _ port.VehicleRepository = (*VehicleRepository)(nil)
