package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/vehicle-service-tracker/internal/application/service"
	"github.com/garyjia/vehicle-service-tracker/internal/application/workflow"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	domainwf "github.com/garyjia/vehicle-service-tracker/internal/domain/workflow"
)

const testToken = "valid-token"

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{}) {}

func (nopLogger) Error(string, ...interface{}) {}

type fakeAuth struct {
	service.AuthService
	loginCalls int
}

func (f *fakeAuth) ParseAccessToken(token string) (int64, error) {
	if token != testToken {
		return 0, entity.ErrUnauthorized
	}
	return 42, nil
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (*service.TokenPair, error) {
	f.loginCalls++
	if password != "secret-pass" {
		return nil, fmt.Errorf("%w: invalid credentials", entity.ErrUnauthorized)
	}
	return &service.TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "bearer"}, nil
}

func (f *fakeAuth) CurrentUser(_ context.Context, userID int64) (*entity.User, error) {
	if userID != 42 {
		return nil, entity.ErrUnauthorized
	}
	return &entity.User{ID: userID, Username: "mechanic", PasswordHash: "hash"}, nil
}

// fakeLifecycle embeds the interface so tests only stub what they call
type fakeLifecycle struct {
	workflow.LifecycleEngine
	changeState   func(workflow.ChangeStateRequest) (*entity.StateHistoryEntry, error)
	stateComments func(int64) ([]*entity.StateComment, error)
	verify        func(int64) error
	allStates     func() ([]*entity.State, error)
}

func (f *fakeLifecycle) ChangeState(_ context.Context, req workflow.ChangeStateRequest) (*entity.StateHistoryEntry, error) {
	return f.changeState(req)
}

func (f *fakeLifecycle) GetStateComments(_ context.Context, stateID int64) ([]*entity.StateComment, error) {
	return f.stateComments(stateID)
}

func (f *fakeLifecycle) VerifyHistory(_ context.Context, vehicleID int64) error {
	return f.verify(vehicleID)
}

func (f *fakeLifecycle) GetAllStates(context.Context) ([]*entity.State, error) {
	return f.allStates()
}

type fakeExport struct {
	err error
}

func (f *fakeExport) ExportHistory(_ context.Context, vehicleID int64, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := fmt.Fprintf(w, "xlsx-%d", vehicleID)
	return err
}

type fakeVehicles struct {
	service.VehicleService
	created []service.CreateVehicleInput
	userIDs []int64
}

func (f *fakeVehicles) Create(_ context.Context, input service.CreateVehicleInput, userID int64) (*entity.Vehicle, error) {
	f.created = append(f.created, input)
	f.userIDs = append(f.userIDs, userID)
	stateID := int64(1)
	return &entity.Vehicle{ID: 7, ModelID: input.ModelID, ColorID: input.ColorID, VIN: input.VIN, StateID: &stateID}, nil
}

func (f *fakeVehicles) Delete(_ context.Context, id, _ int64) error {
	if id != 7 {
		return fmt.Errorf("%w: vehicle %d", entity.ErrNotFound, id)
	}
	return nil
}

type fakeCatalog struct {
	service.CatalogService
	updatedModels []int64
}

func (f *fakeCatalog) UpdateBrand(_ context.Context, id int64, name string) (*entity.Brand, error) {
	if name == "Nissan" {
		return nil, fmt.Errorf("%w: brands %q", entity.ErrAlreadyExists, name)
	}
	return &entity.Brand{ID: id, Name: name}, nil
}

func (f *fakeCatalog) UpdateVehicleType(_ context.Context, id int64, name string) (*entity.VehicleType, error) {
	return &entity.VehicleType{ID: id, Name: name}, nil
}

func (f *fakeCatalog) UpdateVehicleModel(_ context.Context, id int64, name string, brandID, typeID int64) (*entity.VehicleModel, error) {
	f.updatedModels = append(f.updatedModels, id)
	if brandID == 999 {
		return nil, fmt.Errorf("%w: brand %d", entity.ErrNotFound, brandID)
	}
	return &entity.VehicleModel{ID: id, Name: name, BrandID: brandID, TypeID: typeID}, nil
}

func (f *fakeCatalog) UpdateColor(_ context.Context, id int64, name, hexCode string) (*entity.Color, error) {
	if !strings.HasPrefix(hexCode, "#") {
		return nil, fmt.Errorf("%w: hex code", entity.ErrInvalidInput)
	}
	return &entity.Color{ID: id, Name: name, HexCode: hexCode}, nil
}

type observation struct {
	method string
	path   string
	status int
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (r *recordingObserver) ObserveHTTP(method, path string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observation{method, path, status})
}

type testEnv struct {
	server    *Server
	auth      *fakeAuth
	lifecycle *fakeLifecycle
	vehicles  *fakeVehicles
	catalog   *fakeCatalog
	export    *fakeExport
	observer  *recordingObserver
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	env := &testEnv{
		auth:      &fakeAuth{},
		lifecycle: &fakeLifecycle{},
		vehicles:  &fakeVehicles{},
		catalog:   &fakeCatalog{},
		export:    &fakeExport{},
		observer:  &recordingObserver{},
	}
	metricsBody := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics")
	})
	env.server = NewServer(cfg, Services{
		Auth:      env.auth,
		Vehicles:  env.vehicles,
		Catalog:   env.catalog,
		Export:    env.export,
		Lifecycle: env.lifecycle,
	}, nopLogger{}, WithMetrics(env.observer, metricsBody))
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())

	w := env.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)

	w = env.do(t, http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())
	env.lifecycle.allStates = func() ([]*entity.State, error) {
		return []*entity.State{{ID: 1, Code: "INI"}}, nil
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + testToken, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + testToken, http.StatusOK},
		{"scheme is case insensitive", "bearer " + testToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/states", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.server.Router().ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "unauthorized", decode(t, w).Code)
				assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestChangeState_PassesAuthenticatedUser(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())
	var got workflow.ChangeStateRequest
	env.lifecycle.changeState = func(req workflow.ChangeStateRequest) (*entity.StateHistoryEntry, error) {
		got = req
		from := int64(1)
		return &entity.StateHistoryEntry{ID: 9, VehicleID: req.VehicleID, FromStateID: &from, ToStateID: req.NewStateID, UserID: req.UserID, CommentID: req.CommentID}, nil
	}

	w := env.do(t, http.MethodPut, "/api/vehicles/5/state", `{"new_state_id": 2, "comment_id": 3}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, int64(5), got.VehicleID)
	assert.Equal(t, int64(2), got.NewStateID)
	assert.Equal(t, int64(42), got.UserID)
	require.NotNil(t, got.CommentID)
	assert.Equal(t, int64(3), *got.CommentID)

	resp := decode(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 2, data["to_state_id"])
	assert.EqualValues(t, 42, data["user_id"])
}

func TestChangeState_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"vehicle missing", fmt.Errorf("%w: vehicle 5", domainwf.ErrNotFound), http.StatusNotFound, "not_found"},
		{"unknown state", domainwf.ErrInvalidState, http.StatusBadRequest, "invalid_state"},
		{"illegal edge", fmt.Errorf("%w: 1 -> 3", domainwf.ErrInvalidTransition), http.StatusBadRequest, "invalid_transition"},
		{"comment of other state", domainwf.ErrInvalidComment, http.StatusBadRequest, "invalid_comment"},
		{"lost race", domainwf.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
		{"no initial state", domainwf.ErrConfiguration, http.StatusInternalServerError, "configuration_error"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, DefaultServerConfig())
			env.lifecycle.changeState = func(workflow.ChangeStateRequest) (*entity.StateHistoryEntry, error) {
				return nil, tt.err
			}

			w := env.do(t, http.MethodPut, "/api/vehicles/5/state", `{"new_state_id": 3}`, true)
			assert.Equal(t, tt.wantStatus, w.Code)

			resp := decode(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, resp.Error, tt.err.Error(), "internal detail must not leak")
			}
		})
	}
}

func TestChangeState_BadRequests(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())
	env.lifecycle.changeState = func(workflow.ChangeStateRequest) (*entity.StateHistoryEntry, error) {
		t.Fatal("engine must not be called")
		return nil, nil
	}

	w := env.do(t, http.MethodPut, "/api/vehicles/abc/state", `{"new_state_id": 2}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/vehicles/0/state", `{"new_state_id": 2}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/vehicles/5/state", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", decode(t, w).Code)
}

func TestGetStateComments_DistinguishesErrors(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())
	env.lifecycle.stateComments = func(id int64) ([]*entity.StateComment, error) {
		switch id {
		case 2:
			return nil, fmt.Errorf("%w: state 2", domainwf.ErrNoCommentsForState)
		case 9999:
			return nil, fmt.Errorf("%w: state 9999", domainwf.ErrStateNotFound)
		}
		return []*entity.StateComment{{ID: 1, StateID: id, Comment: "ok"}}, nil
	}

	w := env.do(t, http.MethodGet, "/api/states/2/comments", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no_comments_for_state", decode(t, w).Code)

	w = env.do(t, http.MethodGet, "/api/states/9999/comments", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "state_not_found", decode(t, w).Code)

	w = env.do(t, http.MethodGet, "/api/states/3/comments", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerifyStateHistory(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())
	env.lifecycle.verify = func(id int64) error {
		if id == 1 {
			return nil
		}
		return fmt.Errorf("%w: entry 3 starts at 4", domainwf.ErrBrokenHistory)
	}

	w := env.do(t, http.MethodGet, "/api/vehicles/1/state_history/verify", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w).Data.(map[string]interface{})["consistent"])

	w = env.do(t, http.MethodGet, "/api/vehicles/2/state_history/verify", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, false, data["consistent"])
	assert.Contains(t, data["detail"], "entry 3")
}

func TestExportStateHistory(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())

	w := env.do(t, http.MethodGet, "/api/vehicles/4/state_history/export", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "vehicle-4-history.xlsx")
	assert.Equal(t, "xlsx-4", w.Body.String())

	env.export.err = fmt.Errorf("%w: vehicle 8", domainwf.ErrNotFound)
	w = env.do(t, http.MethodGet, "/api/vehicles/8/state_history/export", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w).Code)
}

func TestVehicleCreateAndDelete(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())

	w := env.do(t, http.MethodPost, "/api/vehicles",
		`{"vehicle_model_id": 1, "color_id": 2, "vin": "1HGCM82633A004352", "is_urgent": true}`, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, env.vehicles.created, 1)
	assert.Equal(t, "1HGCM82633A004352", env.vehicles.created[0].VIN)
	assert.True(t, env.vehicles.created[0].IsUrgent)
	assert.Equal(t, []int64{42}, env.vehicles.userIDs)

	w = env.do(t, http.MethodDelete, "/api/vehicles/7", "", true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodDelete, "/api/vehicles/8", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalogUpdates(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"rename brand", "/api/brands/3", `{"name": "Toyota"}`, http.StatusOK, ""},
		{"brand name taken", "/api/brands/3", `{"name": "Nissan"}`, http.StatusConflict, "already_exists"},
		{"brand without name", "/api/brands/3", `{}`, http.StatusBadRequest, "invalid_input"},
		{"bad brand id", "/api/brands/abc", `{"name": "Toyota"}`, http.StatusBadRequest, "invalid_input"},
		{"rename vehicle type", "/api/vehicle_types/2", `{"name": "SUV"}`, http.StatusOK, ""},
		{"move model", "/api/models/5", `{"name": "Hilux", "brand_id": 3, "vehicle_type_id": 2}`, http.StatusOK, ""},
		{"model to unknown brand", "/api/models/5", `{"name": "Hilux", "brand_id": 999, "vehicle_type_id": 2}`, http.StatusNotFound, "not_found"},
		{"recolor", "/api/colors/1", `{"name": "Rojo", "hex_code": "#AA0000"}`, http.StatusOK, ""},
		{"invalid hex", "/api/colors/1", `{"name": "Rojo", "hex_code": "red"}`, http.StatusBadRequest, "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, tt.path, tt.body, true)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			resp := decode(t, w)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, resp.Code)
				return
			}
			assert.True(t, resp.Success)
		})
	}

	assert.Equal(t, []int64{5, 5}, env.catalog.updatedModels)

	w := env.do(t, http.MethodPut, "/api/brands/3", `{"name": "Toyota"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())

	w := env.do(t, http.MethodGet, "/auth/me", "", true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w).Data.(map[string]interface{})
	assert.EqualValues(t, 42, data["id"])
	assert.Equal(t, "mechanic", data["username"])
	assert.NotContains(t, data, "password_hash")

	w = env.do(t, http.MethodGet, "/auth/me", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRateLimit(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.LoginRPS = 0.001
	cfg.LoginBurst = 2
	env := newTestEnv(t, cfg)

	body := `{"username": "mechanic", "password": "wrong-pass"}`
	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/auth/login", body, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := env.do(t, http.MethodPost, "/auth/login", body, false)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decode(t, w).Code)
	assert.Equal(t, 2, env.auth.loginCalls, "limited request never reaches the service")
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())

	w := env.do(t, http.MethodPost, "/auth/login", `{"username": "mechanic", "password": "secret-pass"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "a", data["access_token"])
	assert.Equal(t, "bearer", data["token_type"])
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	env := newTestEnv(t, DefaultServerConfig())
	env.lifecycle.changeState = func(workflow.ChangeStateRequest) (*entity.StateHistoryEntry, error) {
		return nil, domainwf.ErrInvalidTransition
	}

	env.do(t, http.MethodPut, "/api/vehicles/5/state", `{"new_state_id": 3}`, true)
	env.do(t, http.MethodGet, "/nowhere", "", false)

	env.observer.mu.Lock()
	defer env.observer.mu.Unlock()
	require.Len(t, env.observer.seen, 2)
	assert.Equal(t, observation{http.MethodPut, "/api/vehicles/:id/state", http.StatusBadRequest}, env.observer.seen[0])
	assert.Equal(t, "", env.observer.seen[1].path)
	assert.Equal(t, http.StatusNotFound, env.observer.seen[1].status)
}

func TestClassify(t *testing.T) {
	status, code := classify(fmt.Errorf("wrapped: %w", entity.ErrAlreadyExists))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_exists", code)

	status, code = classify(fmt.Errorf("%w: bad vin", entity.ErrInvalidInput))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", code)

	status, _ = classify(entity.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, status)
}
