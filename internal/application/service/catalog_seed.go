package service

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"gopkg.in/yaml.v3"
)

// CatalogFile is the YAML document accepted by the seed command
type CatalogFile struct {
	States       []SeedState      `yaml:"states"`
	Transitions  []SeedTransition `yaml:"transitions"`
	Brands       []string         `yaml:"brands"`
	VehicleTypes []string         `yaml:"vehicle_types"`
	Models       []SeedModel      `yaml:"models"`
	Colors       []SeedColor      `yaml:"colors"`
}

// SeedState is a state entry; comments are the predefined annotations of the state
type SeedState struct {
	Code         string   `yaml:"code"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Initial      bool     `yaml:"initial"`
	Final        bool     `yaml:"final"`
	DisplayOrder int      `yaml:"display_order"`
	Icon         string   `yaml:"icon"`
	Color        string   `yaml:"color"`
	Category     string   `yaml:"category"`
	Comments     []string `yaml:"comments"`
}

// SeedTransition references states by code
type SeedTransition struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Condition string `yaml:"condition"`
	Action    string `yaml:"action"`
}

// SeedModel references its brand and type by name
type SeedModel struct {
	Name  string `yaml:"name"`
	Brand string `yaml:"brand"`
	Type  string `yaml:"type"`
}

// SeedColor is a named color
type SeedColor struct {
	Name string `yaml:"name"`
	Hex  string `yaml:"hex"`
}

// ImportSummary counts what an import created; existing entries are not counted
type ImportSummary struct {
	States       int `json:"states"`
	Transitions  int `json:"transitions"`
	Comments     int `json:"comments"`
	Brands       int `json:"brands"`
	VehicleTypes int `json:"vehicle_types"`
	Models       int `json:"models"`
	Colors       int `json:"colors"`
}

// ParseCatalog decodes and validates a catalog document
func ParseCatalog(data []byte) (*CatalogFile, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// LoadCatalogFromFS reads a catalog document from fsys
func LoadCatalogFromFS(fsys fs.FS, path string) (*CatalogFile, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %q: %w", path, err)
	}
	return ParseCatalog(data)
}

// Validate checks the document is self-consistent before anything is written
func (f *CatalogFile) Validate() error {
	codes := make(map[string]bool, len(f.States))
	initial := 0
	for _, s := range f.States {
		code := strings.ToUpper(strings.TrimSpace(s.Code))
		if code == "" {
			return fmt.Errorf("%w: state without code", entity.ErrInvalidInput)
		}
		if codes[code] {
			return fmt.Errorf("%w: duplicate state code %q", entity.ErrInvalidInput, code)
		}
		codes[code] = true
		if s.Initial {
			initial++
		}
	}
	if initial > 1 {
		return fmt.Errorf("%w: %d initial states declared", entity.ErrInvalidInput, initial)
	}

	for _, t := range f.Transitions {
		// from and to may name states that already exist in the store
		from, to := strings.ToUpper(strings.TrimSpace(t.From)), strings.ToUpper(strings.TrimSpace(t.To))
		if from == "" || to == "" {
			return fmt.Errorf("%w: transition needs both from and to", entity.ErrInvalidInput)
		}
		if from == to {
			return fmt.Errorf("%w: self transition on %q", entity.ErrInvalidInput, from)
		}
	}
	return nil
}

// ImportCatalog applies the document in one transaction
func (s *catalogServiceImpl) ImportCatalog(ctx context.Context, file *CatalogFile) (*ImportSummary, error) {
	if err := file.Validate(); err != nil {
		return nil, err
	}

	summary := &ImportSummary{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.importStates(txCtx, file, summary); err != nil {
			return err
		}
		if err := s.importTransitions(txCtx, file, summary); err != nil {
			return err
		}
		return s.importVehicleCatalog(txCtx, file, summary)
	})
	if err != nil {
		s.logger.Error("Failed to import catalog", "error", err)
		return nil, err
	}

	s.catalogChanged(ctx, "import", fmt.Sprintf("%d states, %d transitions", summary.States, summary.Transitions))
	return summary, nil
}

func (s *catalogServiceImpl) importStates(ctx context.Context, file *CatalogFile, summary *ImportSummary) error {
	for _, seed := range file.States {
		code := strings.ToUpper(strings.TrimSpace(seed.Code))
		state, err := s.repos.States.GetByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("get state %q: %w", code, err)
		}
		if state == nil {
			state, err = s.createState(ctx, StateInput{
				Code:         code,
				Name:         seed.Name,
				Description:  seed.Description,
				IsInitial:    seed.Initial,
				IsFinal:      seed.Final,
				DisplayOrder: seed.DisplayOrder,
				Icon:         seed.Icon,
				Color:        seed.Color,
				Category:     seed.Category,
			})
			if err != nil {
				return fmt.Errorf("state %q: %w", code, err)
			}
			summary.States++
		}

		existing, err := s.repos.Comments.ListByState(ctx, state.ID)
		if err != nil {
			return fmt.Errorf("list comments of %q: %w", code, err)
		}
		have := make(map[string]bool, len(existing))
		for _, c := range existing {
			have[c.Comment] = true
		}
		for _, text := range seed.Comments {
			if have[strings.TrimSpace(text)] {
				continue
			}
			if _, err := s.createComment(ctx, state.ID, text); err != nil {
				return fmt.Errorf("comment on %q: %w", code, err)
			}
			summary.Comments++
		}
	}
	return nil
}

func (s *catalogServiceImpl) importTransitions(ctx context.Context, file *CatalogFile, summary *ImportSummary) error {
	if len(file.Transitions) == 0 {
		return nil
	}

	all, err := s.repos.Transitions.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list transitions: %w", err)
	}
	type pair struct{ from, to int64 }
	have := make(map[pair]bool, len(all))
	for _, t := range all {
		have[pair{t.FromStateID, t.ToStateID}] = true
	}

	for _, seed := range file.Transitions {
		from, err := s.stateByCode(ctx, seed.From)
		if err != nil {
			return err
		}
		to, err := s.stateByCode(ctx, seed.To)
		if err != nil {
			return err
		}
		if have[pair{from.ID, to.ID}] {
			continue
		}
		if _, err := s.createTransition(ctx, TransitionInput{
			FromStateID: from.ID,
			ToStateID:   to.ID,
			Condition:   seed.Condition,
			Action:      seed.Action,
		}); err != nil {
			return fmt.Errorf("transition %s -> %s: %w", from.Code, to.Code, err)
		}
		have[pair{from.ID, to.ID}] = true
		summary.Transitions++
	}
	return nil
}

func (s *catalogServiceImpl) importVehicleCatalog(ctx context.Context, file *CatalogFile, summary *ImportSummary) error {
	for _, name := range file.Brands {
		existing, err := s.repos.Brands.GetByName(ctx, strings.TrimSpace(name))
		if err != nil {
			return fmt.Errorf("get brand %q: %w", name, err)
		}
		if existing != nil {
			continue
		}
		if _, err := s.CreateBrand(ctx, name); err != nil {
			return err
		}
		summary.Brands++
	}

	for _, name := range file.VehicleTypes {
		existing, err := s.repos.Types.GetByName(ctx, strings.TrimSpace(name))
		if err != nil {
			return fmt.Errorf("get vehicle type %q: %w", name, err)
		}
		if existing != nil {
			continue
		}
		if _, err := s.CreateVehicleType(ctx, name); err != nil {
			return err
		}
		summary.VehicleTypes++
	}

	for _, seed := range file.Models {
		brand, err := s.repos.Brands.GetByName(ctx, strings.TrimSpace(seed.Brand))
		if err != nil {
			return fmt.Errorf("get brand %q: %w", seed.Brand, err)
		}
		vt, err := s.repos.Types.GetByName(ctx, strings.TrimSpace(seed.Type))
		if err != nil {
			return fmt.Errorf("get vehicle type %q: %w", seed.Type, err)
		}
		if brand == nil || vt == nil {
			return fmt.Errorf("%w: model %q references unknown brand or type", entity.ErrInvalidInput, seed.Name)
		}
		existing, err := s.repos.Models.GetByName(ctx, brand.ID, strings.TrimSpace(seed.Name))
		if err != nil {
			return fmt.Errorf("get model %q: %w", seed.Name, err)
		}
		if existing != nil {
			continue
		}
		if _, err := s.CreateVehicleModel(ctx, seed.Name, brand.ID, vt.ID); err != nil {
			return err
		}
		summary.Models++
	}

	for _, seed := range file.Colors {
		existing, err := s.repos.Colors.GetByName(ctx, strings.TrimSpace(seed.Name))
		if err != nil {
			return fmt.Errorf("get color %q: %w", seed.Name, err)
		}
		if existing != nil {
			continue
		}
		if _, err := s.CreateColor(ctx, seed.Name, seed.Hex); err != nil {
			return err
		}
		summary.Colors++
	}
	return nil
}

func (s *catalogServiceImpl) stateByCode(ctx context.Context, code string) (*entity.State, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	state, err := s.repos.States.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get state %q: %w", code, err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: state %q", entity.ErrNotFound, code)
	}
	return state, nil
}
