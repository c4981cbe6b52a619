package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/dispatcher"
	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
	"github.com/garyjia/vehicle-service-tracker/pkg/utils"
)

// StateInput describes a state to add to the catalog
type StateInput struct {
	Code         string `json:"code" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	IsInitial    bool   `json:"is_initial"`
	IsFinal      bool   `json:"is_final"`
	DisplayOrder int    `json:"display_order"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	Category     string `json:"category"`
}

// TransitionInput describes an edge to add to the transition table
type TransitionInput struct {
	FromStateID int64  `json:"from_state_id" binding:"required"`
	ToStateID   int64  `json:"to_state_id" binding:"required"`
	Condition   string `json:"condition"`
	Action      string `json:"action"`
}

// CatalogService manages reference data: vehicle catalog and lifecycle configuration
type CatalogService interface {
	CreateBrand(ctx context.Context, name string) (*entity.Brand, error)
	GetBrand(ctx context.Context, id int64) (*entity.Brand, error)
	ListBrands(ctx context.Context) ([]*entity.Brand, error)
	UpdateBrand(ctx context.Context, id int64, name string) (*entity.Brand, error)
	DeleteBrand(ctx context.Context, id int64) error

	CreateVehicleType(ctx context.Context, name string) (*entity.VehicleType, error)
	GetVehicleType(ctx context.Context, id int64) (*entity.VehicleType, error)
	ListVehicleTypes(ctx context.Context) ([]*entity.VehicleType, error)
	UpdateVehicleType(ctx context.Context, id int64, name string) (*entity.VehicleType, error)
	DeleteVehicleType(ctx context.Context, id int64) error

	CreateVehicleModel(ctx context.Context, name string, brandID, typeID int64) (*entity.VehicleModel, error)
	GetVehicleModel(ctx context.Context, id int64) (*entity.VehicleModel, error)
	ListVehicleModels(ctx context.Context) ([]*entity.VehicleModel, error)
	UpdateVehicleModel(ctx context.Context, id int64, name string, brandID, typeID int64) (*entity.VehicleModel, error)
	DeleteVehicleModel(ctx context.Context, id int64) error

	CreateColor(ctx context.Context, name, hexCode string) (*entity.Color, error)
	GetColor(ctx context.Context, id int64) (*entity.Color, error)
	ListColors(ctx context.Context) ([]*entity.Color, error)
	UpdateColor(ctx context.Context, id int64, name, hexCode string) (*entity.Color, error)
	DeleteColor(ctx context.Context, id int64) error

	CreateState(ctx context.Context, input StateInput) (*entity.State, error)
	CreateTransition(ctx context.Context, input TransitionInput) (*entity.Transition, error)
	ListTransitions(ctx context.Context) ([]*entity.Transition, error)
	CreateStateComment(ctx context.Context, stateID int64, text string) (*entity.StateComment, error)

	// ImportCatalog applies a catalog file, skipping entries that already exist
	ImportCatalog(ctx context.Context, file *CatalogFile) (*ImportSummary, error)
}

// CatalogRepositories bundles the ports used by the catalog service
type CatalogRepositories struct {
	Brands      port.BrandRepository
	Types       port.VehicleTypeRepository
	Models      port.VehicleModelRepository
	Colors      port.ColorRepository
	States      port.StateRepository
	Transitions port.TransitionRepository
	Comments    port.StateCommentRepository
}

type catalogServiceImpl struct {
	repos       CatalogRepositories
	txManager   port.TransactionManager
	invalidator CatalogInvalidator
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(
	repos CatalogRepositories,
	txManager port.TransactionManager,
	invalidator CatalogInvalidator,
	d dispatcher.Dispatcher,
	logger Logger,
) CatalogService {
	return &catalogServiceImpl{
		repos:       repos,
		txManager:   txManager,
		invalidator: invalidator,
		dispatcher:  d,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func requireName(kind, name string) (string, error) {
	name = utils.SanitizeString(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s name is required", entity.ErrInvalidInput, kind)
	}
	return name, nil
}

// found turns a (nil, nil) repository lookup into ErrNotFound
func found[T any](v *T, err error, kind string, id int64) (*T, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s %d", entity.ErrNotFound, kind, id)
	}
	return v, nil
}

// CreateBrand adds a brand with a unique name
func (s *catalogServiceImpl) CreateBrand(ctx context.Context, name string) (*entity.Brand, error) {
	name, err := requireName("brand", name)
	if err != nil {
		return nil, err
	}
	brand := &entity.Brand{Name: name, CreatedAt: s.now()}
	if err := s.repos.Brands.Create(ctx, brand); err != nil {
		s.logger.Error("Failed to create brand", "error", err, "name", name)
		return nil, err
	}
	s.logger.Info("Brand created", "brand_id", brand.ID, "name", name)
	return brand, nil
}

func (s *catalogServiceImpl) GetBrand(ctx context.Context, id int64) (*entity.Brand, error) {
	brand, err := s.repos.Brands.GetByID(ctx, id)
	return found(brand, err, "brand", id)
}

func (s *catalogServiceImpl) ListBrands(ctx context.Context) ([]*entity.Brand, error) {
	return s.repos.Brands.List(ctx)
}

// UpdateBrand renames a brand. The new name must not belong to another brand.
func (s *catalogServiceImpl) UpdateBrand(ctx context.Context, id int64, name string) (*entity.Brand, error) {
	name, err := requireName("brand", name)
	if err != nil {
		return nil, err
	}
	brand, err := s.GetBrand(ctx, id)
	if err != nil {
		return nil, err
	}
	brand.Name = name
	if err := s.repos.Brands.Update(ctx, brand); err != nil {
		s.logger.Error("Failed to update brand", "error", err, "brand_id", id)
		return nil, err
	}
	s.logger.Info("Brand updated", "brand_id", id, "name", name)
	return brand, nil
}

func (s *catalogServiceImpl) DeleteBrand(ctx context.Context, id int64) error {
	if err := s.repos.Brands.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete brand", "error", err, "brand_id", id)
		return err
	}
	return nil
}

// CreateVehicleType adds a vehicle type with a unique name
func (s *catalogServiceImpl) CreateVehicleType(ctx context.Context, name string) (*entity.VehicleType, error) {
	name, err := requireName("vehicle type", name)
	if err != nil {
		return nil, err
	}
	vt := &entity.VehicleType{Name: name, CreatedAt: s.now()}
	if err := s.repos.Types.Create(ctx, vt); err != nil {
		s.logger.Error("Failed to create vehicle type", "error", err, "name", name)
		return nil, err
	}
	s.logger.Info("Vehicle type created", "vehicle_type_id", vt.ID, "name", name)
	return vt, nil
}

func (s *catalogServiceImpl) GetVehicleType(ctx context.Context, id int64) (*entity.VehicleType, error) {
	vt, err := s.repos.Types.GetByID(ctx, id)
	return found(vt, err, "vehicle type", id)
}

func (s *catalogServiceImpl) ListVehicleTypes(ctx context.Context) ([]*entity.VehicleType, error) {
	return s.repos.Types.List(ctx)
}

func (s *catalogServiceImpl) UpdateVehicleType(ctx context.Context, id int64, name string) (*entity.VehicleType, error) {
	name, err := requireName("vehicle type", name)
	if err != nil {
		return nil, err
	}
	vt, err := s.GetVehicleType(ctx, id)
	if err != nil {
		return nil, err
	}
	vt.Name = name
	if err := s.repos.Types.Update(ctx, vt); err != nil {
		s.logger.Error("Failed to update vehicle type", "error", err, "vehicle_type_id", id)
		return nil, err
	}
	s.logger.Info("Vehicle type updated", "vehicle_type_id", id, "name", name)
	return vt, nil
}

func (s *catalogServiceImpl) DeleteVehicleType(ctx context.Context, id int64) error {
	if err := s.repos.Types.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete vehicle type", "error", err, "vehicle_type_id", id)
		return err
	}
	return nil
}

// CreateVehicleModel adds a model under an existing brand and type
func (s *catalogServiceImpl) CreateVehicleModel(ctx context.Context, name string, brandID, typeID int64) (*entity.VehicleModel, error) {
	name, err := requireName("vehicle model", name)
	if err != nil {
		return nil, err
	}

	model := &entity.VehicleModel{Name: name, BrandID: brandID, TypeID: typeID, CreatedAt: s.now()}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.GetBrand(txCtx, brandID); err != nil {
			return err
		}
		if _, err := s.GetVehicleType(txCtx, typeID); err != nil {
			return err
		}
		return s.repos.Models.Create(txCtx, model)
	})
	if err != nil {
		s.logger.Error("Failed to create vehicle model", "error", err, "name", name, "brand_id", brandID)
		return nil, err
	}

	s.logger.Info("Vehicle model created", "vehicle_model_id", model.ID, "name", name)
	return model, nil
}

func (s *catalogServiceImpl) GetVehicleModel(ctx context.Context, id int64) (*entity.VehicleModel, error) {
	model, err := s.repos.Models.GetByID(ctx, id)
	return found(model, err, "vehicle model", id)
}

func (s *catalogServiceImpl) ListVehicleModels(ctx context.Context) ([]*entity.VehicleModel, error) {
	return s.repos.Models.List(ctx)
}

// UpdateVehicleModel renames a model or moves it to another existing brand and type
func (s *catalogServiceImpl) UpdateVehicleModel(ctx context.Context, id int64, name string, brandID, typeID int64) (*entity.VehicleModel, error) {
	name, err := requireName("vehicle model", name)
	if err != nil {
		return nil, err
	}

	var model *entity.VehicleModel
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if model, err = s.GetVehicleModel(txCtx, id); err != nil {
			return err
		}
		if _, err := s.GetBrand(txCtx, brandID); err != nil {
			return err
		}
		if _, err := s.GetVehicleType(txCtx, typeID); err != nil {
			return err
		}
		model.Name, model.BrandID, model.TypeID = name, brandID, typeID
		return s.repos.Models.Update(txCtx, model)
	})
	if err != nil {
		s.logger.Error("Failed to update vehicle model", "error", err, "vehicle_model_id", id)
		return nil, err
	}

	s.logger.Info("Vehicle model updated", "vehicle_model_id", id, "name", name)
	return model, nil
}

func (s *catalogServiceImpl) DeleteVehicleModel(ctx context.Context, id int64) error {
	if err := s.repos.Models.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete vehicle model", "error", err, "vehicle_model_id", id)
		return err
	}
	return nil
}

// CreateColor adds a color with a unique name and a #RRGGBB code
func (s *catalogServiceImpl) CreateColor(ctx context.Context, name, hexCode string) (*entity.Color, error) {
	name, err := requireName("color", name)
	if err != nil {
		return nil, err
	}
	hexCode = strings.ToUpper(strings.TrimSpace(hexCode))
	if err := utils.ValidateHexColor(hexCode); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	color := &entity.Color{Name: name, HexCode: hexCode, CreatedAt: s.now()}
	if err := s.repos.Colors.Create(ctx, color); err != nil {
		s.logger.Error("Failed to create color", "error", err, "name", name)
		return nil, err
	}
	s.logger.Info("Color created", "color_id", color.ID, "name", name)
	return color, nil
}

func (s *catalogServiceImpl) GetColor(ctx context.Context, id int64) (*entity.Color, error) {
	color, err := s.repos.Colors.GetByID(ctx, id)
	return found(color, err, "color", id)
}

func (s *catalogServiceImpl) ListColors(ctx context.Context) ([]*entity.Color, error) {
	return s.repos.Colors.List(ctx)
}

func (s *catalogServiceImpl) UpdateColor(ctx context.Context, id int64, name, hexCode string) (*entity.Color, error) {
	name, err := requireName("color", name)
	if err != nil {
		return nil, err
	}
	hexCode = strings.ToUpper(strings.TrimSpace(hexCode))
	if err := utils.ValidateHexColor(hexCode); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	color, err := s.GetColor(ctx, id)
	if err != nil {
		return nil, err
	}
	color.Name, color.HexCode = name, hexCode
	if err := s.repos.Colors.Update(ctx, color); err != nil {
		s.logger.Error("Failed to update color", "error", err, "color_id", id)
		return nil, err
	}
	s.logger.Info("Color updated", "color_id", id, "name", name)
	return color, nil
}

func (s *catalogServiceImpl) DeleteColor(ctx context.Context, id int64) error {
	if err := s.repos.Colors.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete color", "error", err, "color_id", id)
		return err
	}
	return nil
}

// CreateState adds a state. Codes are unique and the catalog holds at most one initial state.
func (s *catalogServiceImpl) CreateState(ctx context.Context, input StateInput) (*entity.State, error) {
	var state *entity.State
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		state, err = s.createState(txCtx, input)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to create state", "error", err, "code", input.Code)
		return nil, err
	}

	s.catalogChanged(ctx, "state", state.Code)
	return state, nil
}

func (s *catalogServiceImpl) createState(ctx context.Context, input StateInput) (*entity.State, error) {
	code := strings.ToUpper(utils.SanitizeString(input.Code))
	if code == "" {
		return nil, fmt.Errorf("%w: state code is required", entity.ErrInvalidInput)
	}
	name, err := requireName("state", input.Name)
	if err != nil {
		return nil, err
	}

	existing, err := s.repos.States.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get state by code: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: state %q", entity.ErrAlreadyExists, code)
	}

	if input.IsInitial {
		initial, err := s.repos.States.GetInitial(ctx)
		if err != nil {
			return nil, fmt.Errorf("get initial state: %w", err)
		}
		if len(initial) > 0 {
			return nil, fmt.Errorf("%w: initial state %q", entity.ErrAlreadyExists, initial[0].Code)
		}
	}

	now := s.now()
	state := &entity.State{
		Code:         code,
		Name:         name,
		Description:  input.Description,
		IsInitial:    input.IsInitial,
		IsFinal:      input.IsFinal,
		DisplayOrder: input.DisplayOrder,
		Active:       true,
		Icon:         input.Icon,
		Color:        input.Color,
		Category:     input.Category,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repos.States.Create(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// CreateTransition adds an active edge between two existing, distinct states
func (s *catalogServiceImpl) CreateTransition(ctx context.Context, input TransitionInput) (*entity.Transition, error) {
	var transition *entity.Transition
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		transition, err = s.createTransition(txCtx, input)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to create transition", "error", err,
			"from_state_id", input.FromStateID, "to_state_id", input.ToStateID)
		return nil, err
	}

	s.catalogChanged(ctx, "transition", fmt.Sprintf("%d->%d", transition.FromStateID, transition.ToStateID))
	return transition, nil
}

func (s *catalogServiceImpl) createTransition(ctx context.Context, input TransitionInput) (*entity.Transition, error) {
	if input.FromStateID == input.ToStateID {
		return nil, fmt.Errorf("%w: a state cannot transition to itself", entity.ErrInvalidInput)
	}
	for _, id := range []int64{input.FromStateID, input.ToStateID} {
		state, err := s.repos.States.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get state: %w", err)
		}
		if state == nil {
			return nil, fmt.Errorf("%w: state %d", entity.ErrNotFound, id)
		}
	}

	transition := &entity.Transition{
		FromStateID: input.FromStateID,
		ToStateID:   input.ToStateID,
		Condition:   input.Condition,
		Action:      input.Action,
		Active:      true,
		CreatedAt:   s.now(),
	}
	if err := s.repos.Transitions.Create(ctx, transition); err != nil {
		return nil, err
	}
	return transition, nil
}

func (s *catalogServiceImpl) ListTransitions(ctx context.Context) ([]*entity.Transition, error) {
	return s.repos.Transitions.ListAll(ctx)
}

// CreateStateComment adds a predefined comment to an existing state
func (s *catalogServiceImpl) CreateStateComment(ctx context.Context, stateID int64, text string) (*entity.StateComment, error) {
	var comment *entity.StateComment
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		comment, err = s.createComment(txCtx, stateID, text)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to create state comment", "error", err, "state_id", stateID)
		return nil, err
	}

	s.catalogChanged(ctx, "state_comment", comment.Comment)
	return comment, nil
}

func (s *catalogServiceImpl) createComment(ctx context.Context, stateID int64, text string) (*entity.StateComment, error) {
	text = utils.SanitizeString(text)
	if text == "" {
		return nil, fmt.Errorf("%w: comment text is required", entity.ErrInvalidInput)
	}
	state, err := s.repos.States.GetByID(ctx, stateID)
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: state %d", entity.ErrNotFound, stateID)
	}

	comment := &entity.StateComment{StateID: stateID, Comment: text, CreatedAt: s.now()}
	if err := s.repos.Comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// catalogChanged drops cached catalog views and announces the change
func (s *catalogServiceImpl) catalogChanged(ctx context.Context, kind, ref string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateCatalog()
	}
	s.logger.Info("Lifecycle catalog changed", "kind", kind, "ref", ref)
	publish(ctx, s.dispatcher, event.NewEvent(event.TypeCatalogChanged, 0, 0,
		map[string]interface{}{event.PayloadKind: kind, event.PayloadRef: ref}))
}
