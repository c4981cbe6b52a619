package service

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/dispatcher"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *recordingDispatcher) Subscribe(event.Type, dispatcher.Handler) {}

func (d *recordingDispatcher) SubscribeNamed(event.Type, string, dispatcher.Handler) {}

func (d *recordingDispatcher) Unsubscribe(event.Type, string) {}

func (d *recordingDispatcher) ListHandlers(event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (d *recordingDispatcher) Close() error {
	return nil
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.DispatchAsync(ctx, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(_ context.Context, evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) types() []event.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Type, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type mockVehicleRepo struct {
	createFunc           func(ctx context.Context, v *entity.Vehicle) error
	getByIDFunc          func(ctx context.Context, id int64) (*entity.Vehicle, error)
	getByVINFunc         func(ctx context.Context, vin string) (*entity.Vehicle, error)
	listFunc             func(ctx context.Context, filter entity.VehicleFilter) ([]*entity.Vehicle, error)
	updateFunc           func(ctx context.Context, v *entity.Vehicle) error
	deleteFunc           func(ctx context.Context, id int64) error
	countFunc            func(ctx context.Context) (int, error)
	countInProgressFunc  func(ctx context.Context) (int, error)
	listCreatedSinceFunc func(ctx context.Context, since time.Time) ([]time.Time, error)
}

func (m *mockVehicleRepo) Create(ctx context.Context, v *entity.Vehicle) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, v)
	}
	v.ID = 1
	return nil
}

func (m *mockVehicleRepo) GetByID(ctx context.Context, id int64) (*entity.Vehicle, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockVehicleRepo) GetByIDForUpdate(ctx context.Context, id int64) (*entity.Vehicle, error) {
	return m.GetByID(ctx, id)
}

func (m *mockVehicleRepo) GetByVIN(ctx context.Context, vin string) (*entity.Vehicle, error) {
	if m.getByVINFunc != nil {
		return m.getByVINFunc(ctx, vin)
	}
	return nil, nil
}

func (m *mockVehicleRepo) List(ctx context.Context, filter entity.VehicleFilter) ([]*entity.Vehicle, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return []*entity.Vehicle{}, nil
}

func (m *mockVehicleRepo) Update(ctx context.Context, v *entity.Vehicle) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, v)
	}
	return nil
}

func (m *mockVehicleRepo) SetInitialState(context.Context, int64, int64, time.Time) (bool, error) {
	return true, nil
}

func (m *mockVehicleRepo) UpdateStateIfCurrent(context.Context, int64, int64, int64, time.Time) (bool, error) {
	return true, nil
}

func (m *mockVehicleRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockVehicleRepo) Count(ctx context.Context) (int, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockVehicleRepo) CountInProgress(ctx context.Context) (int, error) {
	if m.countInProgressFunc != nil {
		return m.countInProgressFunc(ctx)
	}
	return 0, nil
}

func (m *mockVehicleRepo) ListCreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	if m.listCreatedSinceFunc != nil {
		return m.listCreatedSinceFunc(ctx, since)
	}
	return nil, nil
}

type mockHistoryRepo struct {
	deleteByVehicleFunc func(ctx context.Context, vehicleID int64) error
}

func (m *mockHistoryRepo) Create(context.Context, *entity.StateHistoryEntry) error {
	return nil
}

func (m *mockHistoryRepo) ListByVehicle(context.Context, int64) ([]*entity.StateHistoryEntry, error) {
	return []*entity.StateHistoryEntry{}, nil
}

func (m *mockHistoryRepo) DeleteByVehicle(ctx context.Context, vehicleID int64) error {
	if m.deleteByVehicleFunc != nil {
		return m.deleteByVehicleFunc(ctx, vehicleID)
	}
	return nil
}

type mockModelRepo struct {
	models map[int64]*entity.VehicleModel
}

func (m *mockModelRepo) Create(context.Context, *entity.VehicleModel) error { return nil }

func (m *mockModelRepo) GetByID(_ context.Context, id int64) (*entity.VehicleModel, error) {
	return m.models[id], nil
}

func (m *mockModelRepo) GetByName(context.Context, int64, string) (*entity.VehicleModel, error) {
	return nil, nil
}

func (m *mockModelRepo) List(context.Context) ([]*entity.VehicleModel, error) { return nil, nil }

func (m *mockModelRepo) Update(context.Context, *entity.VehicleModel) error { return nil }

func (m *mockModelRepo) Delete(context.Context, int64) error { return nil }

type mockColorRepo struct {
	colors map[int64]*entity.Color
}

func (m *mockColorRepo) Create(context.Context, *entity.Color) error { return nil }

func (m *mockColorRepo) GetByID(_ context.Context, id int64) (*entity.Color, error) {
	return m.colors[id], nil
}

func (m *mockColorRepo) GetByName(context.Context, string) (*entity.Color, error) { return nil, nil }

func (m *mockColorRepo) List(context.Context) ([]*entity.Color, error) { return nil, nil }

func (m *mockColorRepo) Update(context.Context, *entity.Color) error { return nil }

func (m *mockColorRepo) Delete(context.Context, int64) error { return nil }

type mockInitializer struct {
	initializeFunc func(ctx context.Context, vehicleID, userID int64) (int64, error)
}

func (m *mockInitializer) InitializeVehicleState(ctx context.Context, vehicleID, userID int64) (int64, error) {
	if m.initializeFunc != nil {
		return m.initializeFunc(ctx, vehicleID, userID)
	}
	return 1, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[int64]*entity.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[int64]*entity.User{}}
}

func (m *memUserRepo) Create(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = int64(len(m.users) + 1)
	m.users[u.ID] = u
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id int64) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*entity.RefreshToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: map[string]*entity.RefreshToken{}}
}

func (m *memTokenRepo) Create(_ context.Context, t *entity.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = int64(len(m.tokens) + 1)
	m.tokens[t.TokenID] = t
	return nil
}

func (m *memTokenRepo) GetByTokenID(_ context.Context, tokenID string) (*entity.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTokenRepo) Revoke(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenID]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	return true, nil
}

func (m *memTokenRepo) RevokeAllForUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *memTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if t.Revoked || t.ExpiresAt.Before(before) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}
