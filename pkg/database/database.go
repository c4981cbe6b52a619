package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Config holds database configuration
type Config struct {
	// Driver is either "sqlite3" or "pgx"
	Driver          string
	Path            string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB wraps sql.DB with the dialect it speaks
type DB struct {
	*sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// New opens the connection for cfg.Driver and verifies it with a ping
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := dataSourceName(cfg, dialect)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	logger.Info("Database connection established", zap.Stringer("dialect", dialect))
	return &DB{DB: sqlDB, dialect: dialect, logger: logger}, nil
}

// dataSourceName builds the sqlite3 DSN from Path. WAL lets readers run during a
// state change; _txlock=immediate takes the write lock at BEGIN so two changes
// on one vehicle queue behind the busy timeout instead of failing on upgrade.
func dataSourceName(cfg Config, d Dialect) (string, error) {
	if d == SQLite {
		if cfg.Path == "" {
			return "", fmt.Errorf("database path is required for driver %s", cfg.Driver)
		}
		return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", cfg.Path), nil
	}
	if cfg.DSN == "" {
		return "", fmt.Errorf("database dsn is required for driver %s", cfg.Driver)
	}
	return cfg.DSN, nil
}

// Dialect returns the SQL dialect of the connection
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// WithTransaction runs fn in a transaction that commits only when fn returns nil
func (db *DB) WithTransaction(fn func(*sql.Tx) error) (err error) {
	tx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	db.logger.Debug("Closing database connection")
	return db.DB.Close()
}
