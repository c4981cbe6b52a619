package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/pkg/database"
	"go.uber.org/zap"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const txKey contextKey = "tx"

// DB wraps sql.DB and implements TransactionManager.
// Repositories obtain their executor from it so they join the transaction
// carried by the context.
type DB struct {
	*sql.DB
	dialect database.Dialect
	logger  *zap.Logger
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, dialect database.Dialect, logger *zap.Logger) *DB {
	return &DB{
		DB:      sqlDB,
		dialect: dialect,
		logger:  logger,
	}
}

// FromDatabase wraps an opened pkg/database connection
func FromDatabase(db *database.DB, logger *zap.Logger) *DB {
	return NewDB(db.DB, db.Dialect(), logger)
}

// Dialect returns the SQL dialect of the connection
func (db *DB) Dialect() database.Dialect {
	return db.dialect
}

// WithTransaction implements port.TransactionManager
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// InTransaction reports whether ctx carries an open transaction
func InTransaction(ctx context.Context) bool {
	return extractTx(ctx) != nil
}

func extractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// Executor returns the transaction in ctx, or the pool, with placeholders
// rewritten for the connection's dialect
func (db *DB) Executor(ctx context.Context) Executor {
	var base executor = db.DB
	if tx := extractTx(ctx); tx != nil {
		base = tx
	}
	return &rebinder{base: base, dialect: db.dialect}
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type executor = Executor

type rebinder struct {
	base    executor
	dialect database.Dialect
}

func (r *rebinder) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return r.base.ExecContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *rebinder) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return r.base.QueryContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *rebinder) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return r.base.QueryRowContext(ctx, r.dialect.Rebind(query), args...)
}

// Verify interface compliance
var _ port.TransactionManager = (*DB)(nil)
