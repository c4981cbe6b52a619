package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/dispatcher"
	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
	domainwf "github.com/garyjia/vehicle-service-tracker/internal/domain/workflow"
)

// Repositories bundles the persistence ports the engine reads and writes
type Repositories struct {
	States      port.StateRepository
	Transitions port.TransitionRepository
	Comments    port.StateCommentRepository
	Vehicles    port.VehicleRepository
	History     port.HistoryRepository
}

// engineImpl is the concrete implementation of LifecycleEngine
type engineImpl struct {
	repos      Repositories
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time

	// Cached state catalog. Transition validation never reads it.
	mu          sync.RWMutex
	states      []*entity.State
	loadedAt    time.Time
	cacheExpiry time.Duration
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithCacheExpiry sets how long the state catalog listing is cached
func WithCacheExpiry(expiry time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.cacheExpiry = expiry
	}
}

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new lifecycle engine
func NewEngine(repos Repositories, txManager port.TransactionManager, opts ...EngineOption) LifecycleEngine {
	e := &engineImpl{
		repos:       repos,
		txManager:   txManager,
		now:         func() time.Time { return time.Now().UTC() },
		cacheExpiry: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// InitializeVehicleState assigns the initial state and writes the first ledger entry
func (e *engineImpl) InitializeVehicleState(ctx context.Context, vehicleID, userID int64) (int64, error) {
	var initialID int64

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		vehicle, err := e.repos.Vehicles.GetByIDForUpdate(txCtx, vehicleID)
		if err != nil {
			return fmt.Errorf("failed to fetch vehicle: %w", err)
		}
		if vehicle == nil {
			return fmt.Errorf("%w: vehicle %d", domainwf.ErrNotFound, vehicleID)
		}

		candidates, err := e.repos.States.GetInitial(txCtx)
		if err != nil {
			return fmt.Errorf("failed to fetch initial state: %w", err)
		}
		initial, err := domainwf.InitialState(candidates)
		if err != nil {
			return err
		}

		now := e.now()
		ok, err := e.repos.Vehicles.SetInitialState(txCtx, vehicleID, initial.ID, now)
		if err != nil {
			return fmt.Errorf("failed to set initial state: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: vehicle %d", domainwf.ErrAlreadyInitialized, vehicleID)
		}

		entry := &entity.StateHistoryEntry{
			VehicleID: vehicleID,
			ToStateID: initial.ID,
			UserID:    userID,
			Timestamp: now,
		}
		if err := e.repos.History.Create(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		initialID = initial.ID
		return nil
	})
	if err != nil {
		e.logError("Failed to initialize vehicle state", err, "vehicle_id", vehicleID)
		return 0, err
	}

	e.logInfo("Vehicle state initialized", "vehicle_id", vehicleID, "state_id", initialID, "user_id", userID)
	return initialID, nil
}

// GetAllowedTransitions lists the active transitions out of the vehicle's current state
func (e *engineImpl) GetAllowedTransitions(ctx context.Context, vehicleID int64) ([]*entity.Transition, error) {
	vehicle, err := e.getVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle.StateID == nil {
		return nil, fmt.Errorf("%w: vehicle %d has no current state", domainwf.ErrConfiguration, vehicleID)
	}

	transitions, err := e.repos.Transitions.ListActiveFrom(ctx, *vehicle.StateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}

	table := domainwf.BuildTable(transitions)
	out := make([]*entity.Transition, 0, len(transitions))
	for _, t := range table.From(*vehicle.StateID) {
		out = append(out, &t)
	}
	return out, nil
}

// ChangeState validates the request fail-fast and then moves the vehicle.
// The vehicle row is locked for the whole unit of work and the update is
// conditional on the state read at the start.
func (e *engineImpl) ChangeState(ctx context.Context, req ChangeStateRequest) (*entity.StateHistoryEntry, error) {
	var (
		entry    *entity.StateHistoryEntry
		fromCode string
		toCode   string
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		vehicle, err := e.repos.Vehicles.GetByIDForUpdate(txCtx, req.VehicleID)
		if err != nil {
			return fmt.Errorf("failed to fetch vehicle: %w", err)
		}
		if vehicle == nil {
			return fmt.Errorf("%w: vehicle %d", domainwf.ErrNotFound, req.VehicleID)
		}

		target, err := e.repos.States.GetByID(txCtx, req.NewStateID)
		if err != nil {
			return fmt.Errorf("failed to fetch target state: %w", err)
		}
		if target == nil {
			return fmt.Errorf("%w: state %d does not exist", domainwf.ErrInvalidState, req.NewStateID)
		}

		if vehicle.StateID == nil {
			return fmt.Errorf("%w: vehicle %d has no current state", domainwf.ErrInvalidTransition, req.VehicleID)
		}
		current := *vehicle.StateID

		transition, err := e.repos.Transitions.GetActive(txCtx, current, req.NewStateID)
		if err != nil {
			return fmt.Errorf("failed to fetch transition: %w", err)
		}
		if transition == nil {
			return fmt.Errorf("%w: %d -> %d is not allowed", domainwf.ErrInvalidTransition, current, req.NewStateID)
		}

		if req.CommentID != nil {
			comment, err := e.repos.Comments.GetByID(txCtx, *req.CommentID)
			if err != nil {
				return fmt.Errorf("failed to fetch comment: %w", err)
			}
			if comment == nil {
				return fmt.Errorf("%w: comment %d does not exist", domainwf.ErrInvalidComment, *req.CommentID)
			}
			if comment.StateID != req.NewStateID {
				return fmt.Errorf("%w: comment %d belongs to state %d, not %d",
					domainwf.ErrInvalidComment, comment.ID, comment.StateID, req.NewStateID)
			}
		}

		fromState, err := e.repos.States.GetByID(txCtx, current)
		if err != nil {
			return fmt.Errorf("failed to fetch current state: %w", err)
		}
		if fromState == nil {
			return fmt.Errorf("%w: vehicle %d is in unknown state %d", domainwf.ErrConfiguration, req.VehicleID, current)
		}

		now := e.now()
		ok, err := e.repos.Vehicles.UpdateStateIfCurrent(txCtx, req.VehicleID, current, req.NewStateID, now)
		if err != nil {
			return fmt.Errorf("failed to update vehicle state: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: vehicle %d left state %d", domainwf.ErrConcurrentModification, req.VehicleID, current)
		}

		from := current
		entry = &entity.StateHistoryEntry{
			VehicleID:   req.VehicleID,
			FromStateID: &from,
			ToStateID:   req.NewStateID,
			UserID:      req.UserID,
			CommentID:   req.CommentID,
			Timestamp:   now,
		}
		if err := e.repos.History.Create(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		fromCode, toCode = fromState.Code, target.Code
		return nil
	})
	if err != nil {
		e.reportRejection(ctx, req, err)
		return nil, err
	}

	e.logInfo("Vehicle state changed",
		"vehicle_id", req.VehicleID,
		"from_state", fromCode,
		"to_state", toCode,
		"user_id", req.UserID,
	)

	if e.dispatcher != nil {
		payload := map[string]interface{}{
			event.PayloadFromState: fromCode,
			event.PayloadToState:   toCode,
		}
		if req.CommentID != nil {
			payload[event.PayloadCommentID] = *req.CommentID
		}
		e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeVehicleStateChanged, req.VehicleID, req.UserID, payload))
	}

	return entry, nil
}

// GetAllStates returns the catalog, served from cache until it expires
func (e *engineImpl) GetAllStates(ctx context.Context) ([]*entity.State, error) {
	e.mu.RLock()
	cached, loadedAt := e.states, e.loadedAt
	e.mu.RUnlock()

	if cached != nil && e.now().Sub(loadedAt) < e.cacheExpiry {
		return append([]*entity.State(nil), cached...), nil
	}

	states, err := e.repos.States.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}

	e.mu.Lock()
	e.states = states
	e.loadedAt = e.now()
	e.mu.Unlock()

	return append([]*entity.State(nil), states...), nil
}

// ListTransitionsFrom lists active transitions out of an existing state
func (e *engineImpl) ListTransitionsFrom(ctx context.Context, stateID int64) ([]*entity.Transition, error) {
	state, err := e.repos.States.GetByID(ctx, stateID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch state: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: state %d", domainwf.ErrStateNotFound, stateID)
	}

	transitions, err := e.repos.Transitions.ListActiveFrom(ctx, stateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return transitions, nil
}

// GetCurrentState resolves the vehicle's current state record
func (e *engineImpl) GetCurrentState(ctx context.Context, vehicleID int64) (*entity.State, error) {
	vehicle, err := e.getVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle.StateID == nil {
		return nil, fmt.Errorf("%w: vehicle %d has no current state", domainwf.ErrConfiguration, vehicleID)
	}

	state, err := e.repos.States.GetByID(ctx, *vehicle.StateID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch state: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: vehicle %d references missing state %d",
			domainwf.ErrConfiguration, vehicleID, *vehicle.StateID)
	}
	return state, nil
}

// GetHistory returns the vehicle's ledger ordered by timestamp, then id
func (e *engineImpl) GetHistory(ctx context.Context, vehicleID int64) ([]*entity.StateHistoryEntry, error) {
	if _, err := e.getVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}

	entries, err := e.repos.History.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return entries, nil
}

// GetStateComments distinguishes an unknown state from a state without comments
func (e *engineImpl) GetStateComments(ctx context.Context, stateID int64) ([]*entity.StateComment, error) {
	state, err := e.repos.States.GetByID(ctx, stateID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch state: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: state %d", domainwf.ErrStateNotFound, stateID)
	}

	comments, err := e.repos.Comments.ListByState(ctx, stateID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}
	if len(comments) == 0 {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrNoCommentsForState, state.Code)
	}
	return comments, nil
}

// VerifyHistory audits the ledger of one vehicle. The ledger must chain, start
// at the initial state and move only along active transitions, and it must end
// at the vehicle's current state.
func (e *engineImpl) VerifyHistory(ctx context.Context, vehicleID int64) error {
	vehicle, err := e.getVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}

	entries, err := e.repos.History.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}
	if len(entries) == 0 {
		if vehicle.StateID != nil {
			return fmt.Errorf("%w: vehicle %d has a state but no history", domainwf.ErrBrokenHistory, vehicleID)
		}
		return nil
	}

	candidates, err := e.repos.States.GetInitial(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch initial state: %w", err)
	}
	initial, err := domainwf.InitialState(candidates)
	if err != nil {
		return err
	}
	transitions, err := e.repos.Transitions.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list transitions: %w", err)
	}

	m, err := domainwf.ReplayHistory(entries, initial.ID, domainwf.BuildTable(transitions))
	if err != nil {
		return fmt.Errorf("vehicle %d: %w", vehicleID, err)
	}
	if vehicle.StateID == nil || *vehicle.StateID != m.State() {
		return fmt.Errorf("%w: history of vehicle %d ends at state %d", domainwf.ErrBrokenHistory, vehicleID, m.State())
	}
	return nil
}

// InvalidateCatalog drops the cached state listing
func (e *engineImpl) InvalidateCatalog() {
	e.mu.Lock()
	e.states = nil
	e.loadedAt = time.Time{}
	e.mu.Unlock()
}

func (e *engineImpl) getVehicle(ctx context.Context, vehicleID int64) (*entity.Vehicle, error) {
	vehicle, err := e.repos.Vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, fmt.Errorf("%w: vehicle %d", domainwf.ErrNotFound, vehicleID)
	}
	return vehicle, nil
}

// reportRejection emits an event for validation failures so they can be counted
func (e *engineImpl) reportRejection(ctx context.Context, req ChangeStateRequest, err error) {
	reason := rejectionReason(err)
	if reason == "" {
		e.logError("State change failed", err, "vehicle_id", req.VehicleID, "new_state_id", req.NewStateID)
		return
	}

	e.logInfo("State change rejected",
		"vehicle_id", req.VehicleID,
		"new_state_id", req.NewStateID,
		"reason", reason,
	)
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeTransitionRejected, req.VehicleID, req.UserID,
			map[string]interface{}{event.PayloadReason: reason}))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domainwf.ErrNotFound):
		return "not_found"
	case errors.Is(err, domainwf.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domainwf.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domainwf.ErrInvalidComment):
		return "invalid_comment"
	case errors.Is(err, domainwf.ErrConcurrentModification):
		return "concurrent_modification"
	default:
		return ""
	}
}

func (e *engineImpl) logInfo(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, keysAndValues...)
	}
}

func (e *engineImpl) logError(msg string, err error, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, append(keysAndValues, "error", err)...)
	}
}

// Verify interface compliance
var _ LifecycleEngine = (*engineImpl)(nil)
