package workflow

import (
	"context"

	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
)

// ChangeStateRequest describes one requested move of a vehicle
type ChangeStateRequest struct {
	VehicleID  int64
	NewStateID int64
	UserID     int64
	// CommentID optionally references a predefined comment of the target state
	CommentID *int64
}

// LifecycleEngine enforces the configurable vehicle lifecycle.
// Every mutation of a vehicle's state goes through it.
type LifecycleEngine interface {
	// InitializeVehicleState assigns the unique initial state to a vehicle that has
	// none and records the first ledger entry. Returns the initial state id.
	InitializeVehicleState(ctx context.Context, vehicleID, userID int64) (int64, error)

	// GetAllowedTransitions returns the active transitions leaving the vehicle's current state
	GetAllowedTransitions(ctx context.Context, vehicleID int64) ([]*entity.Transition, error)

	// ChangeState validates and applies a transition atomically with its ledger entry
	ChangeState(ctx context.Context, req ChangeStateRequest) (*entity.StateHistoryEntry, error)

	// GetAllStates lists the state catalog
	GetAllStates(ctx context.Context) ([]*entity.State, error)

	// ListTransitionsFrom lists active transitions leaving a state
	ListTransitionsFrom(ctx context.Context, stateID int64) ([]*entity.Transition, error)

	// GetCurrentState resolves the state a vehicle is in
	GetCurrentState(ctx context.Context, vehicleID int64) (*entity.State, error)

	// GetHistory returns the vehicle's ledger oldest first
	GetHistory(ctx context.Context, vehicleID int64) ([]*entity.StateHistoryEntry, error)

	// GetStateComments returns the predefined comments of a state
	GetStateComments(ctx context.Context, stateID int64) ([]*entity.StateComment, error)

	// VerifyHistory replays the ledger through the active transitions and checks
	// that it ends at the current state
	VerifyHistory(ctx context.Context, vehicleID int64) error

	// InvalidateCatalog drops cached catalog reads after administrative changes
	InvalidateCatalog()
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
