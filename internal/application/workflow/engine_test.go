package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/dispatcher"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
	domainwf "github.com/garyjia/vehicle-service-tracker/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations

type mockStateRepo struct {
	states    map[int64]*entity.State
	getErr    map[int64]error
	listCalls int
}

func (m *mockStateRepo) Create(ctx context.Context, s *entity.State) error {
	s.ID = int64(len(m.states) + 1)
	m.states[s.ID] = s
	return nil
}

func (m *mockStateRepo) GetByID(ctx context.Context, id int64) (*entity.State, error) {
	if err := m.getErr[id]; err != nil {
		return nil, err
	}
	return m.states[id], nil
}

func (m *mockStateRepo) GetByCode(ctx context.Context, code string) (*entity.State, error) {
	for _, s := range m.states {
		if s.Code == code {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockStateRepo) List(ctx context.Context) ([]*entity.State, error) {
	m.listCalls++
	out := make([]*entity.State, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStateRepo) GetInitial(ctx context.Context) ([]*entity.State, error) {
	var out []*entity.State
	for _, s := range m.states {
		if s.IsInitial {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockTransitionRepo struct {
	transitions []*entity.Transition
}

func (m *mockTransitionRepo) Create(ctx context.Context, t *entity.Transition) error {
	t.ID = int64(len(m.transitions) + 1)
	m.transitions = append(m.transitions, t)
	return nil
}

func (m *mockTransitionRepo) GetActive(ctx context.Context, from, to int64) (*entity.Transition, error) {
	for _, t := range m.transitions {
		if t.FromStateID == from && t.ToStateID == to && t.Active {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockTransitionRepo) ListActiveFrom(ctx context.Context, from int64) ([]*entity.Transition, error) {
	var out []*entity.Transition
	for _, t := range m.transitions {
		if t.FromStateID == from && t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTransitionRepo) ListAll(ctx context.Context) ([]*entity.Transition, error) {
	return m.transitions, nil
}

type mockCommentRepo struct {
	comments map[int64]*entity.StateComment
}

func (m *mockCommentRepo) Create(ctx context.Context, c *entity.StateComment) error {
	c.ID = int64(len(m.comments) + 1)
	m.comments[c.ID] = c
	return nil
}

func (m *mockCommentRepo) GetByID(ctx context.Context, id int64) (*entity.StateComment, error) {
	return m.comments[id], nil
}

func (m *mockCommentRepo) ListByState(ctx context.Context, stateID int64) ([]*entity.StateComment, error) {
	out := make([]*entity.StateComment, 0)
	for _, c := range m.comments {
		if c.StateID == stateID {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockVehicleRepo struct {
	vehicles map[int64]*entity.Vehicle
	// casMiss forces UpdateStateIfCurrent to report a lost race
	casMiss bool
}

func (m *mockVehicleRepo) Create(ctx context.Context, v *entity.Vehicle) error {
	v.ID = int64(len(m.vehicles) + 1)
	m.vehicles[v.ID] = v
	return nil
}

func (m *mockVehicleRepo) GetByID(ctx context.Context, id int64) (*entity.Vehicle, error) {
	v, ok := m.vehicles[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (m *mockVehicleRepo) GetByIDForUpdate(ctx context.Context, id int64) (*entity.Vehicle, error) {
	return m.GetByID(ctx, id)
}

func (m *mockVehicleRepo) GetByVIN(ctx context.Context, vin string) (*entity.Vehicle, error) {
	return nil, nil
}

func (m *mockVehicleRepo) List(ctx context.Context, filter entity.VehicleFilter) ([]*entity.Vehicle, error) {
	return nil, nil
}

func (m *mockVehicleRepo) Update(ctx context.Context, v *entity.Vehicle) error {
	return nil
}

func (m *mockVehicleRepo) SetInitialState(ctx context.Context, id, stateID int64, at time.Time) (bool, error) {
	v, ok := m.vehicles[id]
	if !ok || v.StateID != nil {
		return false, nil
	}
	v.StateID = &stateID
	return true, nil
}

func (m *mockVehicleRepo) UpdateStateIfCurrent(ctx context.Context, id, expected, next int64, at time.Time) (bool, error) {
	v, ok := m.vehicles[id]
	if m.casMiss || !ok || v.StateID == nil || *v.StateID != expected {
		return false, nil
	}
	v.StateID = &next
	v.UpdatedAt = at
	return true, nil
}

func (m *mockVehicleRepo) Delete(ctx context.Context, id int64) error {
	return nil
}

func (m *mockVehicleRepo) Count(ctx context.Context) (int, error) {
	return len(m.vehicles), nil
}

func (m *mockVehicleRepo) CountInProgress(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *mockVehicleRepo) ListCreatedSince(context.Context, time.Time) ([]time.Time, error) {
	return nil, nil
}

type mockHistoryRepo struct {
	entries   []*entity.StateHistoryEntry
	createErr error
}

func (m *mockHistoryRepo) Create(ctx context.Context, e *entity.StateHistoryEntry) error {
	if m.createErr != nil {
		return m.createErr
	}
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockHistoryRepo) ListByVehicle(ctx context.Context, vehicleID int64) ([]*entity.StateHistoryEntry, error) {
	out := make([]*entity.StateHistoryEntry, 0)
	for _, e := range m.entries {
		if e.VehicleID == vehicleID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockHistoryRepo) DeleteByVehicle(ctx context.Context, vehicleID int64) error {
	return nil
}

// mockTxManager snapshots vehicle state so a failing unit of work rolls back
type mockTxManager struct {
	vehicles *mockVehicleRepo
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := make(map[int64]entity.Vehicle, len(m.vehicles.vehicles))
	for id, v := range m.vehicles.vehicles {
		snapshot[id] = *v
	}
	if err := fn(ctx); err != nil {
		for id, v := range snapshot {
			m.vehicles.vehicles[id] = &v
		}
		return err
	}
	return nil
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(event.Type, dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(event.Type, string, dispatcher.Handler) {}

func (m *mockDispatcher) Unsubscribe(event.Type, string) {}

func (m *mockDispatcher) ListHandlers(event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ofType(t event.Type) []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

const (
	stIni  int64 = 1
	stWash int64 = 2
	stDone int64 = 3
	userID int64 = 42
)

type fixture struct {
	states      *mockStateRepo
	transitions *mockTransitionRepo
	comments    *mockCommentRepo
	vehicles    *mockVehicleRepo
	history     *mockHistoryRepo
	events      *mockDispatcher
	clock       time.Time
	engine      LifecycleEngine
}

// newFixture builds INI(initial) -> WASH -> DONE(final) with one comment on WASH (id 1)
// and one on DONE (id 2)
func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()

	f := &fixture{
		states: &mockStateRepo{states: map[int64]*entity.State{
			stIni:  {ID: stIni, Code: "INI", IsInitial: true, Active: true},
			stWash: {ID: stWash, Code: "WASH", Active: true},
			stDone: {ID: stDone, Code: "DONE", IsFinal: true, Active: true},
		}},
		transitions: &mockTransitionRepo{transitions: []*entity.Transition{
			{ID: 1, FromStateID: stIni, ToStateID: stWash, Active: true},
			{ID: 2, FromStateID: stWash, ToStateID: stDone, Active: true},
		}},
		comments: &mockCommentRepo{comments: map[int64]*entity.StateComment{
			1: {ID: 1, StateID: stWash, Comment: "Lavado completo"},
			2: {ID: 2, StateID: stDone, Comment: "Entregado"},
		}},
		vehicles: &mockVehicleRepo{vehicles: map[int64]*entity.Vehicle{}},
		history:  &mockHistoryRepo{},
		events:   &mockDispatcher{},
		clock:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	clock := func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}

	all := append([]EngineOption{WithDispatcher(f.events), WithClock(clock)}, opts...)
	f.engine = NewEngine(Repositories{
		States:      f.states,
		Transitions: f.transitions,
		Comments:    f.comments,
		Vehicles:    f.vehicles,
		History:     f.history,
	}, &mockTxManager{vehicles: f.vehicles}, all...)
	return f
}

func (f *fixture) newVehicle(t *testing.T) int64 {
	t.Helper()
	v := &entity.Vehicle{VIN: "1HGCM82633A004352"}
	require.NoError(t, f.vehicles.Create(context.Background(), v))
	_, err := f.engine.InitializeVehicleState(context.Background(), v.ID, userID)
	require.NoError(t, err)
	return v.ID
}

func ptr(v int64) *int64 { return &v }

func TestInitializeVehicleState(t *testing.T) {
	t.Run("assigns the initial state and records a null-from entry", func(t *testing.T) {
		f := newFixture(t)
		v := &entity.Vehicle{}
		require.NoError(t, f.vehicles.Create(context.Background(), v))

		stateID, err := f.engine.InitializeVehicleState(context.Background(), v.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, stIni, stateID)
		assert.Equal(t, stIni, *f.vehicles.vehicles[v.ID].StateID)

		require.Len(t, f.history.entries, 1)
		entry := f.history.entries[0]
		assert.Nil(t, entry.FromStateID)
		assert.Equal(t, stIni, entry.ToStateID)
		assert.Equal(t, userID, entry.UserID)
		assert.Nil(t, entry.CommentID)
	})

	t.Run("fails with configuration error without an initial state", func(t *testing.T) {
		f := newFixture(t)
		f.states.states[stIni].IsInitial = false
		v := &entity.Vehicle{}
		require.NoError(t, f.vehicles.Create(context.Background(), v))

		_, err := f.engine.InitializeVehicleState(context.Background(), v.ID, userID)
		assert.ErrorIs(t, err, domainwf.ErrConfiguration)
		assert.Nil(t, f.vehicles.vehicles[v.ID].StateID)
		assert.Empty(t, f.history.entries)
	})

	t.Run("rejects unknown vehicles", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.InitializeVehicleState(context.Background(), 99, userID)
		assert.ErrorIs(t, err, domainwf.ErrNotFound)
	})

	t.Run("cannot initialize twice", func(t *testing.T) {
		f := newFixture(t)
		id := f.newVehicle(t)
		_, err := f.engine.InitializeVehicleState(context.Background(), id, userID)
		assert.ErrorIs(t, err, domainwf.ErrAlreadyInitialized)
		assert.Len(t, f.history.entries, 1)
	})
}

func TestChangeState_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newVehicle(t)

	_, err := f.engine.ChangeState(ctx, ChangeStateRequest{VehicleID: id, NewStateID: stDone, UserID: userID})
	require.ErrorIs(t, err, domainwf.ErrInvalidTransition)
	assert.Equal(t, stIni, *f.vehicles.vehicles[id].StateID)

	entry, err := f.engine.ChangeState(ctx, ChangeStateRequest{VehicleID: id, NewStateID: stWash, UserID: userID, CommentID: ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, stIni, *entry.FromStateID)
	assert.Equal(t, stWash, entry.ToStateID)
	assert.Equal(t, int64(1), *entry.CommentID)

	_, err = f.engine.ChangeState(ctx, ChangeStateRequest{VehicleID: id, NewStateID: stDone, UserID: userID})
	require.NoError(t, err)

	history, err := f.engine.GetHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.NoError(t, domainwf.VerifyHistory(history))
	assert.NoError(t, f.engine.VerifyHistory(ctx, id))

	current, err := f.engine.GetCurrentState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "DONE", current.Code)

	changed := f.events.ofType(event.TypeVehicleStateChanged)
	require.Len(t, changed, 2)
	assert.Equal(t, "INI", changed[0].GetPayloadString(event.PayloadFromState))
	assert.Equal(t, "WASH", changed[0].GetPayloadString(event.PayloadToState))
	assert.Len(t, f.events.ofType(event.TypeTransitionRejected), 1)
}

func TestChangeState_ValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		req     ChangeStateRequest
		wantErr error
	}{
		{
			name:    "missing vehicle wins over everything",
			req:     ChangeStateRequest{VehicleID: 99, NewStateID: 999, CommentID: ptr(999)},
			wantErr: domainwf.ErrNotFound,
		},
		{
			name:    "missing target state before transition check",
			req:     ChangeStateRequest{VehicleID: 1, NewStateID: 999, CommentID: ptr(999)},
			wantErr: domainwf.ErrInvalidState,
		},
		{
			name:    "missing edge before comment check",
			req:     ChangeStateRequest{VehicleID: 1, NewStateID: stDone, CommentID: ptr(1)},
			wantErr: domainwf.ErrInvalidTransition,
		},
		{
			name:    "self transition is not an edge",
			req:     ChangeStateRequest{VehicleID: 1, NewStateID: stIni},
			wantErr: domainwf.ErrInvalidTransition,
		},
		{
			name:    "comment of another state",
			req:     ChangeStateRequest{VehicleID: 1, NewStateID: stWash, CommentID: ptr(2)},
			wantErr: domainwf.ErrInvalidComment,
		},
		{
			name:    "unknown comment",
			req:     ChangeStateRequest{VehicleID: 1, NewStateID: stWash, CommentID: ptr(77)},
			wantErr: domainwf.ErrInvalidComment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.newVehicle(t)
			tt.req.UserID = userID

			_, err := f.engine.ChangeState(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, f.history.entries, 1, "a rejected change must not append history")
			assert.Equal(t, stIni, *f.vehicles.vehicles[1].StateID)
		})
	}
}

func TestChangeState_TransitionLegalityMatrix(t *testing.T) {
	for _, target := range []int64{stIni, stWash, stDone} {
		f := newFixture(t)
		id := f.newVehicle(t)

		_, err := f.engine.ChangeState(context.Background(), ChangeStateRequest{VehicleID: id, NewStateID: target, UserID: userID})
		allowed := target == stWash
		if allowed {
			assert.NoError(t, err, "INI -> %d", target)
		} else {
			assert.ErrorIs(t, err, domainwf.ErrInvalidTransition, "INI -> %d", target)
			assert.Equal(t, stIni, *f.vehicles.vehicles[id].StateID)
		}
	}
}

func TestChangeState_InactiveTransitionIsRejected(t *testing.T) {
	f := newFixture(t)
	f.transitions.transitions[0].Active = false
	id := f.newVehicle(t)

	_, err := f.engine.ChangeState(context.Background(), ChangeStateRequest{VehicleID: id, NewStateID: stWash, UserID: userID})
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)
}

func TestChangeState_FinalStateIsNotTerminal(t *testing.T) {
	f := newFixture(t)
	f.transitions.transitions = append(f.transitions.transitions,
		&entity.Transition{ID: 3, FromStateID: stDone, ToStateID: stWash, Active: true})
	id := f.newVehicle(t)
	ctx := context.Background()

	for _, target := range []int64{stWash, stDone, stWash} {
		_, err := f.engine.ChangeState(ctx, ChangeStateRequest{VehicleID: id, NewStateID: target, UserID: userID})
		require.NoError(t, err)
	}
	assert.NoError(t, f.engine.VerifyHistory(ctx, id))
}

func TestChangeState_LostRace(t *testing.T) {
	f := newFixture(t)
	id := f.newVehicle(t)
	f.vehicles.casMiss = true

	_, err := f.engine.ChangeState(context.Background(), ChangeStateRequest{VehicleID: id, NewStateID: stWash, UserID: userID})
	assert.ErrorIs(t, err, domainwf.ErrConcurrentModification)
	assert.Len(t, f.history.entries, 1)

	rejected := f.events.ofType(event.TypeTransitionRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "concurrent_modification", rejected[0].GetPayloadString(event.PayloadReason))
}

func TestChangeState_HistoryFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	id := f.newVehicle(t)
	f.history.createErr = errors.New("disk full")

	_, err := f.engine.ChangeState(context.Background(), ChangeStateRequest{VehicleID: id, NewStateID: stWash, UserID: userID})
	require.Error(t, err)
	assert.Equal(t, stIni, *f.vehicles.vehicles[id].StateID)
	assert.Empty(t, f.events.ofType(event.TypeVehicleStateChanged))
	assert.Empty(t, f.events.ofType(event.TypeTransitionRejected), "unexpected errors are not rejections")
}

func TestGetAllowedTransitions(t *testing.T) {
	f := newFixture(t)
	f.transitions.transitions = append(f.transitions.transitions,
		&entity.Transition{ID: 3, FromStateID: stIni, ToStateID: stDone, Active: false})
	id := f.newVehicle(t)
	ctx := context.Background()

	first, err := f.engine.GetAllowedTransitions(ctx, id)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, stWash, first[0].ToStateID)

	second, err := f.engine.GetAllowedTransitions(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = f.engine.GetAllowedTransitions(ctx, 99)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}

func TestGetStateComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	comments, err := f.engine.GetStateComments(ctx, stWash)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Lavado completo", comments[0].Comment)

	_, err = f.engine.GetStateComments(ctx, stIni)
	assert.ErrorIs(t, err, domainwf.ErrNoCommentsForState)
	assert.NotErrorIs(t, err, domainwf.ErrStateNotFound)

	_, err = f.engine.GetStateComments(ctx, 9999)
	assert.ErrorIs(t, err, domainwf.ErrStateNotFound)
	assert.NotErrorIs(t, err, domainwf.ErrNoCommentsForState)
}

func TestGetAllStates_CachesUntilExpiryOrInvalidation(t *testing.T) {
	f := newFixture(t, WithCacheExpiry(time.Minute))
	ctx := context.Background()

	states, err := f.engine.GetAllStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 3)

	_, err = f.engine.GetAllStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.states.listCalls)

	f.engine.InvalidateCatalog()
	_, err = f.engine.GetAllStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.states.listCalls)

	f.clock = f.clock.Add(2 * time.Minute)
	_, err = f.engine.GetAllStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, f.states.listCalls)
}

func TestGetCurrentState_DanglingReference(t *testing.T) {
	f := newFixture(t)
	id := f.newVehicle(t)
	delete(f.states.states, stIni)

	_, err := f.engine.GetCurrentState(context.Background(), id)
	assert.ErrorIs(t, err, domainwf.ErrConfiguration)
}

func TestListTransitionsFrom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.engine.ListTransitionsFrom(ctx, stWash)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, stDone, out[0].ToStateID)

	_, err = f.engine.ListTransitionsFrom(ctx, 9999)
	assert.ErrorIs(t, err, domainwf.ErrStateNotFound)
}

func TestVerifyHistory_DetectsDrift(t *testing.T) {
	f := newFixture(t)
	id := f.newVehicle(t)
	f.vehicles.vehicles[id].StateID = ptr(stDone)

	err := f.engine.VerifyHistory(context.Background(), id)
	assert.ErrorIs(t, err, domainwf.ErrBrokenHistory)
}

func TestVerifyHistory_AcceptsLegalWalk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newVehicle(t)

	_, err := f.engine.ChangeState(ctx, ChangeStateRequest{VehicleID: id, NewStateID: stWash, UserID: userID})
	require.NoError(t, err)
	_, err = f.engine.ChangeState(ctx, ChangeStateRequest{VehicleID: id, NewStateID: stDone, UserID: userID})
	require.NoError(t, err)

	assert.NoError(t, f.engine.VerifyHistory(ctx, id))
}

func TestVerifyHistory_RejectsOffTableHop(t *testing.T) {
	f := newFixture(t)
	id := f.newVehicle(t)

	// INI -> DONE chains correctly but no transition permits it
	f.history.entries = append(f.history.entries, &entity.StateHistoryEntry{
		ID:          int64(len(f.history.entries) + 1),
		VehicleID:   id,
		FromStateID: ptr(stIni),
		ToStateID:   stDone,
		UserID:      userID,
	})
	f.vehicles.vehicles[id].StateID = ptr(stDone)

	err := f.engine.VerifyHistory(context.Background(), id)
	assert.ErrorIs(t, err, domainwf.ErrBrokenHistory)
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)
}

func TestVerifyHistory_RejectsHopOverDeactivatedTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newVehicle(t)

	_, err := f.engine.ChangeState(ctx, ChangeStateRequest{VehicleID: id, NewStateID: stWash, UserID: userID})
	require.NoError(t, err)
	f.transitions.transitions[0].Active = false

	assert.ErrorIs(t, f.engine.VerifyHistory(ctx, id), domainwf.ErrBrokenHistory)
}

func TestVerifyHistory_RejectsWrongInitialization(t *testing.T) {
	f := newFixture(t)
	id := f.newVehicle(t)

	f.history.entries[0].ToStateID = stWash
	f.vehicles.vehicles[id].StateID = ptr(stWash)

	assert.ErrorIs(t, f.engine.VerifyHistory(context.Background(), id), domainwf.ErrBrokenHistory)
}

func TestVerifyHistory_UninitializedVehicle(t *testing.T) {
	f := newFixture(t)
	v := &entity.Vehicle{}
	require.NoError(t, f.vehicles.Create(context.Background(), v))

	assert.NoError(t, f.engine.VerifyHistory(context.Background(), v.ID))

	f.vehicles.vehicles[v.ID].StateID = ptr(stIni)
	assert.ErrorIs(t, f.engine.VerifyHistory(context.Background(), v.ID), domainwf.ErrBrokenHistory)
}

func TestChangeState_CurrentStateLookupFailure(t *testing.T) {
	t.Run("repository error aborts the move", func(t *testing.T) {
		f := newFixture(t)
		id := f.newVehicle(t)
		boom := errors.New("connection reset")
		f.states.getErr = map[int64]error{stIni: boom}

		_, err := f.engine.ChangeState(context.Background(), ChangeStateRequest{VehicleID: id, NewStateID: stWash, UserID: userID})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, stIni, *f.vehicles.vehicles[id].StateID)
		assert.Len(t, f.history.entries, 1)
		assert.Empty(t, f.events.ofType(event.TypeVehicleStateChanged))
	})

	t.Run("missing current state is a configuration error", func(t *testing.T) {
		f := newFixture(t)
		id := f.newVehicle(t)
		delete(f.states.states, stIni)

		_, err := f.engine.ChangeState(context.Background(), ChangeStateRequest{VehicleID: id, NewStateID: stWash, UserID: userID})
		assert.ErrorIs(t, err, domainwf.ErrConfiguration)
		assert.Equal(t, stIni, *f.vehicles.vehicles[id].StateID)
	})
}
