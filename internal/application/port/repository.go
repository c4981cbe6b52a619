package port

import (
	"context"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
)

// StateRepository defines persistence operations for the state catalog
type StateRepository interface {
	Create(ctx context.Context, state *entity.State) error
	GetByID(ctx context.Context, id int64) (*entity.State, error)
	GetByCode(ctx context.Context, code string) (*entity.State, error)
	// List returns every state ordered by display_order, then id
	List(ctx context.Context) ([]*entity.State, error)
	GetInitial(ctx context.Context) ([]*entity.State, error)
}

// TransitionRepository defines persistence operations for the transition table
type TransitionRepository interface {
	Create(ctx context.Context, t *entity.Transition) error
	// GetActive returns the active transition from -> to, or nil
	GetActive(ctx context.Context, fromStateID, toStateID int64) (*entity.Transition, error)
	// ListActiveFrom returns active transitions leaving a state ordered by id
	ListActiveFrom(ctx context.Context, fromStateID int64) ([]*entity.Transition, error)
	ListAll(ctx context.Context) ([]*entity.Transition, error)
}

// StateCommentRepository defines persistence operations for predefined comments
type StateCommentRepository interface {
	Create(ctx context.Context, c *entity.StateComment) error
	GetByID(ctx context.Context, id int64) (*entity.StateComment, error)
	ListByState(ctx context.Context, stateID int64) ([]*entity.StateComment, error)
}

// VehicleRepository defines persistence operations for vehicles
type VehicleRepository interface {
	Create(ctx context.Context, v *entity.Vehicle) error
	GetByID(ctx context.Context, id int64) (*entity.Vehicle, error)
	// GetByIDForUpdate reads the vehicle and, where the dialect supports it, locks the row
	// until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*entity.Vehicle, error)
	GetByVIN(ctx context.Context, vin string) (*entity.Vehicle, error)
	List(ctx context.Context, filter entity.VehicleFilter) ([]*entity.Vehicle, error)
	Update(ctx context.Context, v *entity.Vehicle) error
	// SetInitialState assigns a state to a vehicle that has none. Returns false when
	// the vehicle already had a state.
	SetInitialState(ctx context.Context, id, stateID int64, at time.Time) (bool, error)
	// UpdateStateIfCurrent moves the vehicle to newStateID only if it is still in
	// expectedStateID. Returns false when no row matched.
	UpdateStateIfCurrent(ctx context.Context, id, expectedStateID, newStateID int64, at time.Time) (bool, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	CountInProgress(ctx context.Context) (int, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

// HistoryRepository defines persistence operations for the state ledger
type HistoryRepository interface {
	Create(ctx context.Context, entry *entity.StateHistoryEntry) error
	// ListByVehicle returns entries ordered by timestamp, then id
	ListByVehicle(ctx context.Context, vehicleID int64) ([]*entity.StateHistoryEntry, error)
	DeleteByVehicle(ctx context.Context, vehicleID int64) error
}

// BrandRepository defines persistence operations for brands
type BrandRepository interface {
	Create(ctx context.Context, b *entity.Brand) error
	GetByID(ctx context.Context, id int64) (*entity.Brand, error)
	GetByName(ctx context.Context, name string) (*entity.Brand, error)
	List(ctx context.Context) ([]*entity.Brand, error)
	Update(ctx context.Context, b *entity.Brand) error
	Delete(ctx context.Context, id int64) error
}

// VehicleTypeRepository defines persistence operations for vehicle types
type VehicleTypeRepository interface {
	Create(ctx context.Context, t *entity.VehicleType) error
	GetByID(ctx context.Context, id int64) (*entity.VehicleType, error)
	GetByName(ctx context.Context, name string) (*entity.VehicleType, error)
	List(ctx context.Context) ([]*entity.VehicleType, error)
	Update(ctx context.Context, t *entity.VehicleType) error
	Delete(ctx context.Context, id int64) error
}

// VehicleModelRepository defines persistence operations for vehicle models
type VehicleModelRepository interface {
	Create(ctx context.Context, m *entity.VehicleModel) error
	GetByID(ctx context.Context, id int64) (*entity.VehicleModel, error)
	GetByName(ctx context.Context, brandID int64, name string) (*entity.VehicleModel, error)
	List(ctx context.Context) ([]*entity.VehicleModel, error)
	Update(ctx context.Context, m *entity.VehicleModel) error
	Delete(ctx context.Context, id int64) error
}

// ColorRepository defines persistence operations for colors
type ColorRepository interface {
	Create(ctx context.Context, c *entity.Color) error
	GetByID(ctx context.Context, id int64) (*entity.Color, error)
	GetByName(ctx context.Context, name string) (*entity.Color, error)
	List(ctx context.Context) ([]*entity.Color, error)
	Update(ctx context.Context, c *entity.Color) error
	Delete(ctx context.Context, id int64) error
}

// UserRepository defines persistence operations for users
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
}

// RefreshTokenRepository defines persistence operations for refresh tokens
type RefreshTokenRepository interface {
	Create(ctx context.Context, t *entity.RefreshToken) error
	GetByTokenID(ctx context.Context, tokenID string) (*entity.RefreshToken, error)
	// Revoke marks a token revoked. Returns false if it was already revoked or missing.
	Revoke(ctx context.Context, tokenID string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64) error
	// DeleteExpired removes revoked tokens and tokens that expired before the cutoff
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction runs fn inside a transaction. A transaction already carried
	// by ctx is reused; otherwise a new one is committed on success and rolled back
	// on error or panic.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
