package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/workflow"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	domainwf "github.com/garyjia/vehicle-service-tracker/internal/domain/workflow"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/repository"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/vehicle-service-tracker/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSQLiteEngine(t *testing.T) (workflow.LifecycleEngine, *sqldb.DB, testutil.Lifecycle) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	l := testutil.SeedLifecycle(t, db)
	logger := zap.NewNop()

	engine := workflow.NewEngine(workflow.Repositories{
		States:      repository.NewStateRepository(db, logger),
		Transitions: repository.NewTransitionRepository(db, logger),
		Comments:    repository.NewStateCommentRepository(db, logger),
		Vehicles:    repository.NewVehicleRepository(db, logger),
		History:     repository.NewHistoryRepository(db, logger),
	}, db)
	return engine, db, l
}

func createVehicle(t *testing.T, db *sqldb.DB, l testutil.Lifecycle, vin string) int64 {
	t.Helper()
	v := &entity.Vehicle{ModelID: l.ModelID, ColorID: l.ColorID, VIN: vin}
	require.NoError(t, repository.NewVehicleRepository(db, zap.NewNop()).Create(context.Background(), v))
	return v.ID
}

func TestEngine_SQLiteScenario(t *testing.T) {
	engine, db, l := newSQLiteEngine(t)
	ctx := context.Background()
	id := createVehicle(t, db, l, "1HGCM82633A004352")

	stateID, err := engine.InitializeVehicleState(ctx, id, l.UserID)
	require.NoError(t, err)
	assert.Equal(t, l.Ini, stateID)

	_, err = engine.ChangeState(ctx, workflow.ChangeStateRequest{VehicleID: id, NewStateID: l.Done, UserID: l.UserID})
	require.ErrorIs(t, err, domainwf.ErrInvalidTransition)

	_, err = engine.ChangeState(ctx, workflow.ChangeStateRequest{
		VehicleID: id, NewStateID: l.Wash, UserID: l.UserID, CommentID: &l.WashComment,
	})
	require.NoError(t, err)

	_, err = engine.ChangeState(ctx, workflow.ChangeStateRequest{
		VehicleID: id, NewStateID: l.Done, UserID: l.UserID, CommentID: &l.WashComment,
	})
	require.ErrorIs(t, err, domainwf.ErrInvalidComment)

	_, err = engine.ChangeState(ctx, workflow.ChangeStateRequest{VehicleID: id, NewStateID: l.Done, UserID: l.UserID})
	require.NoError(t, err)

	history, err := engine.GetHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Nil(t, history[0].FromStateID)
	assert.Equal(t, l.Ini, *history[1].FromStateID)
	assert.Equal(t, l.Wash, *history[2].FromStateID)
	assert.Equal(t, l.Done, history[2].ToStateID)
	assert.NoError(t, engine.VerifyHistory(ctx, id))

	_, err = engine.GetStateComments(ctx, l.Ini)
	assert.ErrorIs(t, err, domainwf.ErrNoCommentsForState)
	_, err = engine.GetStateComments(ctx, 9999)
	assert.ErrorIs(t, err, domainwf.ErrStateNotFound)
}

func TestEngine_ConcurrentChangesSerializePerVehicle(t *testing.T) {
	engine, db, l := newSQLiteEngine(t)
	ctx := context.Background()
	id := createVehicle(t, db, l, "1HGCM82633A004352")
	_, err := engine.InitializeVehicleState(ctx, id, l.UserID)
	require.NoError(t, err)

	const attempts = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.ChangeState(ctx, workflow.ChangeStateRequest{VehicleID: id, NewStateID: l.Wash, UserID: l.UserID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range failures {
		assert.True(t, isConflict(err), "loser must see InvalidTransition or ConcurrentModification, got %v", err)
	}

	history, err := engine.GetHistory(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.NoError(t, engine.VerifyHistory(ctx, id))
}

func TestEngine_VerifyHistoryRejectsOffTableHop(t *testing.T) {
	engine, db, l := newSQLiteEngine(t)
	ctx := context.Background()
	id := createVehicle(t, db, l, "1HGCM82633A004352")
	_, err := engine.InitializeVehicleState(ctx, id, l.UserID)
	require.NoError(t, err)

	// write INI -> DONE behind the engine's back
	at := time.Now().Add(time.Minute)
	vehicles := repository.NewVehicleRepository(db, zap.NewNop())
	moved, err := vehicles.UpdateStateIfCurrent(ctx, id, l.Ini, l.Done, at)
	require.NoError(t, err)
	require.True(t, moved)
	require.NoError(t, repository.NewHistoryRepository(db, zap.NewNop()).Create(ctx, &entity.StateHistoryEntry{
		VehicleID:   id,
		FromStateID: &l.Ini,
		ToStateID:   l.Done,
		UserID:      l.UserID,
		Timestamp:   at,
	}))

	err = engine.VerifyHistory(ctx, id)
	assert.ErrorIs(t, err, domainwf.ErrBrokenHistory)
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)
}

func isConflict(err error) bool {
	return errors.Is(err, domainwf.ErrInvalidTransition) || errors.Is(err, domainwf.ErrConcurrentModification)
}
