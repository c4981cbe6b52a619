package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/dispatcher"
	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
	"github.com/garyjia/vehicle-service-tracker/pkg/utils"
)

// CreateVehicleInput carries the fields accepted when registering a vehicle
type CreateVehicleInput struct {
	ModelID  int64  `json:"vehicle_model_id" binding:"required"`
	ColorID  int64  `json:"color_id" binding:"required"`
	VIN      string `json:"vin" binding:"required"`
	IsUrgent bool   `json:"is_urgent"`
}

// UpdateVehicleInput carries a partial update; nil fields are left unchanged
type UpdateVehicleInput struct {
	ModelID  *int64  `json:"vehicle_model_id"`
	ColorID  *int64  `json:"color_id"`
	VIN      *string `json:"vin"`
	IsUrgent *bool   `json:"is_urgent"`
}

// VehicleService manages vehicle records. State changes are left to the lifecycle engine.
type VehicleService interface {
	Create(ctx context.Context, input CreateVehicleInput, userID int64) (*entity.Vehicle, error)
	Get(ctx context.Context, id int64) (*entity.Vehicle, error)
	List(ctx context.Context, filter entity.VehicleFilter) ([]*entity.Vehicle, error)
	Update(ctx context.Context, id int64, input UpdateVehicleInput) (*entity.Vehicle, error)
	Delete(ctx context.Context, id, userID int64) error
}

type vehicleServiceImpl struct {
	vehicles   port.VehicleRepository
	history    port.HistoryRepository
	models     port.VehicleModelRepository
	colors     port.ColorRepository
	lifecycle  VehicleInitializer
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewVehicleService creates a new VehicleService
func NewVehicleService(
	vehicles port.VehicleRepository,
	history port.HistoryRepository,
	models port.VehicleModelRepository,
	colors port.ColorRepository,
	lifecycle VehicleInitializer,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) VehicleService {
	return &vehicleServiceImpl{
		vehicles:   vehicles,
		history:    history,
		models:     models,
		colors:     colors,
		lifecycle:  lifecycle,
		txManager:  txManager,
		dispatcher: d,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a vehicle and puts it in the initial state in one transaction
func (s *vehicleServiceImpl) Create(ctx context.Context, input CreateVehicleInput, userID int64) (*entity.Vehicle, error) {
	vin := utils.NormalizeVIN(input.VIN)
	if err := utils.ValidateVIN(vin); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	now := s.now()
	vehicle := &entity.Vehicle{
		ModelID:   input.ModelID,
		ColorID:   input.ColorID,
		VIN:       vin,
		IsUrgent:  input.IsUrgent,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.checkReferences(txCtx, vehicle.ModelID, vehicle.ColorID); err != nil {
			return err
		}
		if err := s.checkVINFree(txCtx, vin, 0); err != nil {
			return err
		}

		if err := s.vehicles.Create(txCtx, vehicle); err != nil {
			return fmt.Errorf("create vehicle: %w", err)
		}

		stateID, err := s.lifecycle.InitializeVehicleState(txCtx, vehicle.ID, userID)
		if err != nil {
			return fmt.Errorf("initialize state: %w", err)
		}
		vehicle.StateID = &stateID
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create vehicle", "error", err, "vin", vin)
		return nil, err
	}

	s.logger.Info("Vehicle created", "vehicle_id", vehicle.ID, "vin", vin, "user_id", userID)
	publish(ctx, s.dispatcher, event.NewEvent(event.TypeVehicleCreated, vehicle.ID, userID,
		map[string]interface{}{event.PayloadVIN: vin}))
	return vehicle, nil
}

// Get retrieves a vehicle by ID
func (s *vehicleServiceImpl) Get(ctx context.Context, id int64) (*entity.Vehicle, error) {
	vehicle, err := s.vehicles.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get vehicle", "error", err, "vehicle_id", id)
		return nil, err
	}
	if vehicle == nil {
		return nil, fmt.Errorf("%w: vehicle %d", entity.ErrNotFound, id)
	}
	return vehicle, nil
}

// List returns vehicles matching the filter
func (s *vehicleServiceImpl) List(ctx context.Context, filter entity.VehicleFilter) ([]*entity.Vehicle, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", entity.ErrInvalidInput)
	}
	filter.VIN = utils.NormalizeVIN(filter.VIN)

	vehicles, err := s.vehicles.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list vehicles", "error", err)
		return nil, err
	}
	return vehicles, nil
}

// Update changes the descriptive fields of a vehicle
func (s *vehicleServiceImpl) Update(ctx context.Context, id int64, input UpdateVehicleInput) (*entity.Vehicle, error) {
	var updated *entity.Vehicle

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		vehicle, err := s.vehicles.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return fmt.Errorf("get vehicle: %w", err)
		}
		if vehicle == nil {
			return fmt.Errorf("%w: vehicle %d", entity.ErrNotFound, id)
		}

		if input.VIN != nil {
			vin := utils.NormalizeVIN(*input.VIN)
			if err := utils.ValidateVIN(vin); err != nil {
				return fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
			}
			if vin != vehicle.VIN {
				if err := s.checkVINFree(txCtx, vin, id); err != nil {
					return err
				}
			}
			vehicle.VIN = vin
		}
		if input.ModelID != nil {
			vehicle.ModelID = *input.ModelID
		}
		if input.ColorID != nil {
			vehicle.ColorID = *input.ColorID
		}
		if input.IsUrgent != nil {
			vehicle.IsUrgent = *input.IsUrgent
		}
		if err := s.checkReferences(txCtx, vehicle.ModelID, vehicle.ColorID); err != nil {
			return err
		}

		vehicle.UpdatedAt = s.now()
		if err := s.vehicles.Update(txCtx, vehicle); err != nil {
			return fmt.Errorf("update vehicle: %w", err)
		}
		updated = vehicle
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update vehicle", "error", err, "vehicle_id", id)
		return nil, err
	}

	s.logger.Info("Vehicle updated", "vehicle_id", id)
	return updated, nil
}

// Delete removes a vehicle together with its state history
func (s *vehicleServiceImpl) Delete(ctx context.Context, id, userID int64) error {
	var vin string

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		vehicle, err := s.vehicles.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return fmt.Errorf("get vehicle: %w", err)
		}
		if vehicle == nil {
			return fmt.Errorf("%w: vehicle %d", entity.ErrNotFound, id)
		}
		vin = vehicle.VIN

		if err := s.history.DeleteByVehicle(txCtx, id); err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		if err := s.vehicles.Delete(txCtx, id); err != nil {
			return fmt.Errorf("delete vehicle: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete vehicle", "error", err, "vehicle_id", id)
		return err
	}

	s.logger.Info("Vehicle deleted", "vehicle_id", id, "user_id", userID)
	publish(ctx, s.dispatcher, event.NewEvent(event.TypeVehicleDeleted, id, userID,
		map[string]interface{}{event.PayloadVIN: vin}))
	return nil
}

func (s *vehicleServiceImpl) checkReferences(ctx context.Context, modelID, colorID int64) error {
	model, err := s.models.GetByID(ctx, modelID)
	if err != nil {
		return fmt.Errorf("get vehicle model: %w", err)
	}
	if model == nil {
		return fmt.Errorf("%w: vehicle model %d", entity.ErrNotFound, modelID)
	}

	color, err := s.colors.GetByID(ctx, colorID)
	if err != nil {
		return fmt.Errorf("get color: %w", err)
	}
	if color == nil {
		return fmt.Errorf("%w: color %d", entity.ErrNotFound, colorID)
	}
	return nil
}

func (s *vehicleServiceImpl) checkVINFree(ctx context.Context, vin string, selfID int64) error {
	existing, err := s.vehicles.GetByVIN(ctx, vin)
	if err != nil {
		return fmt.Errorf("get vehicle by VIN: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return fmt.Errorf("%w: vehicle with VIN %s", entity.ErrAlreadyExists, vin)
	}
	return nil
}
