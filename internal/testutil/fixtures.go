package testutil

import (
	"context"
	"testing"

	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
	"github.com/stretchr/testify/require"
)

// Lifecycle holds the ids created by SeedLifecycle
type Lifecycle struct {
	UserID      int64
	ModelID     int64
	ColorID     int64
	Ini         int64
	Wash        int64
	Done        int64
	WashComment int64
}

// SeedLifecycle inserts a user, a model, a color and the catalog INI -> WASH -> DONE
// with one comment on WASH
func SeedLifecycle(t testing.TB, db *sqldb.DB) Lifecycle {
	t.Helper()
	ctx := context.Background()
	exec := db.Executor(ctx)

	insert := func(query string, args ...interface{}) int64 {
		var id int64
		require.NoError(t, exec.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id))
		return id
	}

	var l Lifecycle
	l.UserID = insert(`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, "tester", "x")
	brand := insert(`INSERT INTO brands (name, created_at) VALUES (?, CURRENT_TIMESTAMP)`, "Toyota")
	vtype := insert(`INSERT INTO vehicle_types (name, created_at) VALUES (?, CURRENT_TIMESTAMP)`, "Sedan")
	l.ModelID = insert(`INSERT INTO vehicle_models (name, brand_id, vehicle_type_id, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`, "Corolla", brand, vtype)
	l.ColorID = insert(`INSERT INTO colors (name, hex_code, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, "White", "#FFFFFF")

	state := func(code string, order int, initial, final bool) int64 {
		return insert(`INSERT INTO states (code, name, is_initial, is_final, display_order, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, code, code, initial, final, order, true)
	}
	l.Ini = state("INI", 1, true, false)
	l.Wash = state("WASH", 2, false, false)
	l.Done = state("DONE", 3, false, true)

	insert(`INSERT INTO transitions (from_state_id, to_state_id, active, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`, l.Ini, l.Wash, true)
	insert(`INSERT INTO transitions (from_state_id, to_state_id, active, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`, l.Wash, l.Done, true)

	l.WashComment = insert(`INSERT INTO state_comments (state_id, comment, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, l.Wash, "Lavado completo")
	return l
}
