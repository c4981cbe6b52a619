package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// insertReturningID runs an INSERT and returns the generated primary key.
// Both supported dialects understand RETURNING.
func insertReturningID(ctx context.Context, exec sqldb.Executor, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := exec.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// stamp returns t in UTC, or the current time when t is zero.
// Timestamps are always written in UTC so text-backed columns sort chronologically.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere, case-folded
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
