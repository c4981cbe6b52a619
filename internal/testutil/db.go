// Package testutil opens throwaway databases for integration tests
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/vehicle-service-tracker/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewSQLiteDB opens a migrated SQLite database in a temp dir and closes it on cleanup
func NewSQLiteDB(t testing.TB) *sqldb.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Driver:          "sqlite3",
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, logger).Run("")
	require.NoError(t, err)

	return sqldb.FromDatabase(db, logger)
}
