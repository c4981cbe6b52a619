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

// namedRow is the shape shared by brands and vehicle types
type namedRow struct {
	ID   int64
	Name string
	At   sql.NullTime
}

// namedTable implements CRUD for (id, name, created_at) tables
type namedTable struct {
	db     *sqldb.DB
	logger *zap.Logger
	table  string
}

func (t *namedTable) create(ctx context.Context, name string, row *namedRow) error {
	row.At = sql.NullTime{Time: stamp(row.At.Time), Valid: true}
	query := `INSERT INTO ` + t.table + ` (name, created_at) VALUES (?, ?)`

	id, err := insertReturningID(ctx, t.db.Executor(ctx), query, name, row.At.Time)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s %q", entity.ErrAlreadyExists, t.table, name)
		}
		t.logger.Error("Failed to insert catalog row", zap.String("table", t.table), zap.Error(err))
		return fmt.Errorf("failed to create %s: %w", t.table, err)
	}
	row.ID = id
	row.Name = name
	return nil
}

func (t *namedTable) get(ctx context.Context, column string, arg interface{}) (*namedRow, error) {
	query := `SELECT id, name, created_at FROM ` + t.table + ` WHERE ` + column + ` = ?`

	var row namedRow
	err := t.db.Executor(ctx).QueryRowContext(ctx, query, arg).Scan(&row.ID, &row.Name, &row.At)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		t.logger.Error("Failed to get catalog row", zap.String("table", t.table), zap.Error(err))
		return nil, fmt.Errorf("failed to get %s: %w", t.table, err)
	}
	return &row, nil
}

func (t *namedTable) list(ctx context.Context) ([]namedRow, error) {
	rows, err := t.db.Executor(ctx).QueryContext(ctx, `SELECT id, name, created_at FROM `+t.table+` ORDER BY name ASC`)
	if err != nil {
		t.logger.Error("Failed to list catalog rows", zap.String("table", t.table), zap.Error(err))
		return nil, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	defer rows.Close()

	var out []namedRow
	for rows.Next() {
		var row namedRow
		if err := rows.Scan(&row.ID, &row.Name, &row.At); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.table, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (t *namedTable) rename(ctx context.Context, id int64, name string) error {
	result, err := t.db.Executor(ctx).ExecContext(ctx, `UPDATE `+t.table+` SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s %q", entity.ErrAlreadyExists, t.table, name)
		}
		t.logger.Error("Failed to update catalog row", zap.String("table", t.table), zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update %s: %w", t.table, err)
	}
	return requireRow(result, t.table, id)
}

func (t *namedTable) delete(ctx context.Context, id int64) error {
	result, err := t.db.Executor(ctx).ExecContext(ctx, `DELETE FROM `+t.table+` WHERE id = ?`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s %d is still referenced", entity.ErrInvalidInput, t.table, id)
		}
		t.logger.Error("Failed to delete catalog row", zap.String("table", t.table), zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete %s: %w", t.table, err)
	}
	return requireRow(result, t.table, id)
}

// BrandRepository implements port.BrandRepository
type BrandRepository struct {
	t namedTable
}

// NewBrandRepository creates a new brand repository
func NewBrandRepository(db *sqldb.DB, logger *zap.Logger) port.BrandRepository {
	return &BrandRepository{t: namedTable{db: db, logger: logger, table: "brands"}}
}

func (r *BrandRepository) Create(ctx context.Context, b *entity.Brand) error {
	row := namedRow{At: sql.NullTime{Time: b.CreatedAt}}
	if err := r.t.create(ctx, b.Name, &row); err != nil {
		return err
	}
	b.ID, b.CreatedAt = row.ID, row.At.Time
	return nil
}

func (r *BrandRepository) GetByID(ctx context.Context, id int64) (*entity.Brand, error) {
	return toBrand(r.t.get(ctx, "id", id))
}

func (r *BrandRepository) GetByName(ctx context.Context, name string) (*entity.Brand, error) {
	return toBrand(r.t.get(ctx, "name", name))
}

func (r *BrandRepository) List(ctx context.Context) ([]*entity.Brand, error) {
	rows, err := r.t.list(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Brand, 0, len(rows))
	for _, row := range rows {
		out = append(out, &entity.Brand{ID: row.ID, Name: row.Name, CreatedAt: row.At.Time})
	}
	return out, nil
}

func (r *BrandRepository) Update(ctx context.Context, b *entity.Brand) error {
	return r.t.rename(ctx, b.ID, b.Name)
}

func (r *BrandRepository) Delete(ctx context.Context, id int64) error {
	return r.t.delete(ctx, id)
}

func toBrand(row *namedRow, err error) (*entity.Brand, error) {
	if err != nil || row == nil {
		return nil, err
	}
	return &entity.Brand{ID: row.ID, Name: row.Name, CreatedAt: row.At.Time}, nil
}

// VehicleTypeRepository implements port.VehicleTypeRepository
type VehicleTypeRepository struct {
	t namedTable
}

// NewVehicleTypeRepository creates a new vehicle type repository
func NewVehicleTypeRepository(db *sqldb.DB, logger *zap.Logger) port.VehicleTypeRepository {
	return &VehicleTypeRepository{t: namedTable{db: db, logger: logger, table: "vehicle_types"}}
}

func (r *VehicleTypeRepository) Create(ctx context.Context, vt *entity.VehicleType) error {
	row := namedRow{At: sql.NullTime{Time: vt.CreatedAt}}
	if err := r.t.create(ctx, vt.Name, &row); err != nil {
		return err
	}
	vt.ID, vt.CreatedAt = row.ID, row.At.Time
	return nil
}

func (r *VehicleTypeRepository) GetByID(ctx context.Context, id int64) (*entity.VehicleType, error) {
	return toVehicleType(r.t.get(ctx, "id", id))
}

func (r *VehicleTypeRepository) GetByName(ctx context.Context, name string) (*entity.VehicleType, error) {
	return toVehicleType(r.t.get(ctx, "name", name))
}

func (r *VehicleTypeRepository) List(ctx context.Context) ([]*entity.VehicleType, error) {
	rows, err := r.t.list(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.VehicleType, 0, len(rows))
	for _, row := range rows {
		out = append(out, &entity.VehicleType{ID: row.ID, Name: row.Name, CreatedAt: row.At.Time})
	}
	return out, nil
}

func (r *VehicleTypeRepository) Update(ctx context.Context, vt *entity.VehicleType) error {
	return r.t.rename(ctx, vt.ID, vt.Name)
}

func (r *VehicleTypeRepository) Delete(ctx context.Context, id int64) error {
	return r.t.delete(ctx, id)
}

func toVehicleType(row *namedRow, err error) (*entity.VehicleType, error) {
	if err != nil || row == nil {
		return nil, err
	}
	return &entity.VehicleType{ID: row.ID, Name: row.Name, CreatedAt: row.At.Time}, nil
}

// VehicleModelRepository implements port.VehicleModelRepository
type VehicleModelRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewVehicleModelRepository creates a new vehicle model repository
func NewVehicleModelRepository(db *sqldb.DB, logger *zap.Logger) port.VehicleModelRepository {
	return &VehicleModelRepository{db: db, logger: logger}
}

func (r *VehicleModelRepository) Create(ctx context.Context, m *entity.VehicleModel) error {
	m.CreatedAt = stamp(m.CreatedAt)
	query := `INSERT INTO vehicle_models (name, brand_id, vehicle_type_id, created_at) VALUES (?, ?, ?, ?)`

	id, err := insertReturningID(ctx, r.db.Executor(ctx), query, m.Name, m.BrandID, m.TypeID, m.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: model %q for brand %d", entity.ErrAlreadyExists, m.Name, m.BrandID)
		}
		r.logger.Error("Failed to create vehicle model", zap.String("name", m.Name), zap.Error(err))
		return fmt.Errorf("failed to create vehicle model: %w", err)
	}
	m.ID = id
	return nil
}

func (r *VehicleModelRepository) GetByID(ctx context.Context, id int64) (*entity.VehicleModel, error) {
	return r.getOne(ctx, `SELECT id, name, brand_id, vehicle_type_id, created_at FROM vehicle_models WHERE id = ?`, id)
}

func (r *VehicleModelRepository) GetByName(ctx context.Context, brandID int64, name string) (*entity.VehicleModel, error) {
	return r.getOne(ctx,
		`SELECT id, name, brand_id, vehicle_type_id, created_at FROM vehicle_models WHERE brand_id = ? AND name = ?`,
		brandID, name)
}

func (r *VehicleModelRepository) List(ctx context.Context) ([]*entity.VehicleModel, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx,
		`SELECT id, name, brand_id, vehicle_type_id, created_at FROM vehicle_models ORDER BY name ASC, id ASC`)
	if err != nil {
		r.logger.Error("Failed to list vehicle models", zap.Error(err))
		return nil, fmt.Errorf("failed to list vehicle models: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.VehicleModel, 0)
	for rows.Next() {
		var m entity.VehicleModel
		if err := rows.Scan(&m.ID, &m.Name, &m.BrandID, &m.TypeID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle model: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *VehicleModelRepository) Update(ctx context.Context, m *entity.VehicleModel) error {
	query := `UPDATE vehicle_models SET name = ?, brand_id = ?, vehicle_type_id = ? WHERE id = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, m.Name, m.BrandID, m.TypeID, m.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: model %q for brand %d", entity.ErrAlreadyExists, m.Name, m.BrandID)
		}
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: brand %d or vehicle type %d does not exist", entity.ErrInvalidInput, m.BrandID, m.TypeID)
		}
		r.logger.Error("Failed to update vehicle model", zap.Int64("id", m.ID), zap.Error(err))
		return fmt.Errorf("failed to update vehicle model: %w", err)
	}
	return requireRow(result, "vehicle model", m.ID)
}

func (r *VehicleModelRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM vehicle_models WHERE id = ?`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: vehicle model %d is still referenced", entity.ErrInvalidInput, id)
		}
		r.logger.Error("Failed to delete vehicle model", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete vehicle model: %w", err)
	}
	return requireRow(result, "vehicle model", id)
}

func (r *VehicleModelRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.VehicleModel, error) {
	var m entity.VehicleModel
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(&m.ID, &m.Name, &m.BrandID, &m.TypeID, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get vehicle model", zap.Error(err))
		return nil, fmt.Errorf("failed to get vehicle model: %w", err)
	}
	return &m, nil
}

// ColorRepository implements port.ColorRepository
type ColorRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewColorRepository creates a new color repository
func NewColorRepository(db *sqldb.DB, logger *zap.Logger) port.ColorRepository {
	return &ColorRepository{db: db, logger: logger}
}

func (r *ColorRepository) Create(ctx context.Context, c *entity.Color) error {
	c.CreatedAt = stamp(c.CreatedAt)
	query := `INSERT INTO colors (name, hex_code, created_at) VALUES (?, ?, ?)`

	id, err := insertReturningID(ctx, r.db.Executor(ctx), query, c.Name, c.HexCode, c.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: color %q", entity.ErrAlreadyExists, c.Name)
		}
		r.logger.Error("Failed to create color", zap.String("name", c.Name), zap.Error(err))
		return fmt.Errorf("failed to create color: %w", err)
	}
	c.ID = id
	return nil
}

func (r *ColorRepository) GetByID(ctx context.Context, id int64) (*entity.Color, error) {
	return r.getOne(ctx, `SELECT id, name, hex_code, created_at FROM colors WHERE id = ?`, id)
}

func (r *ColorRepository) GetByName(ctx context.Context, name string) (*entity.Color, error) {
	return r.getOne(ctx, `SELECT id, name, hex_code, created_at FROM colors WHERE name = ?`, name)
}

func (r *ColorRepository) List(ctx context.Context) ([]*entity.Color, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `SELECT id, name, hex_code, created_at FROM colors ORDER BY name ASC`)
	if err != nil {
		r.logger.Error("Failed to list colors", zap.Error(err))
		return nil, fmt.Errorf("failed to list colors: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.Color, 0)
	for rows.Next() {
		var c entity.Color
		if err := rows.Scan(&c.ID, &c.Name, &c.HexCode, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan color: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *ColorRepository) Update(ctx context.Context, c *entity.Color) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE colors SET name = ?, hex_code = ? WHERE id = ?`, c.Name, c.HexCode, c.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: color %q", entity.ErrAlreadyExists, c.Name)
		}
		r.logger.Error("Failed to update color", zap.Int64("id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to update color: %w", err)
	}
	return requireRow(result, "color", c.ID)
}

func (r *ColorRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM colors WHERE id = ?`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: color %d is still referenced", entity.ErrInvalidInput, id)
		}
		r.logger.Error("Failed to delete color", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete color: %w", err)
	}
	return requireRow(result, "color", id)
}

func (r *ColorRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Color, error) {
	var c entity.Color
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &c.HexCode, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get color", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get color: %w", err)
	}
	return &c, nil
}

// Verify interface compliance
var (
	_ port.BrandRepository        = (*BrandRepository)(nil)
	_ port.VehicleTypeRepository  = (*VehicleTypeRepository)(nil)
	_ port.VehicleModelRepository = (*VehicleModelRepository)(nil)
	_ port.ColorRepository        = (*ColorRepository)(nil)
)
