package service

import (
	"context"
	"sort"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
)

// DashboardSummary aggregates the counters shown on the dashboard
type DashboardSummary struct {
	TotalVehicles int                           `json:"total_vehicles"`
	InProgress    int                           `json:"in_progress"`
	Registrations []entity.MonthlyRegistrations `json:"registrations"`
}

// DashboardService computes read-only fleet statistics
type DashboardService interface {
	CountVehicles(ctx context.Context) (int, error)
	CountInProgress(ctx context.Context) (int, error)
	// RegistrationsByMonth groups registrations at or after since by UTC year and month.
	// A zero since covers every vehicle.
	RegistrationsByMonth(ctx context.Context, since time.Time) ([]entity.MonthlyRegistrations, error)
	Summary(ctx context.Context) (*DashboardSummary, error)
}

type dashboardServiceImpl struct {
	vehicles port.VehicleRepository
	logger   Logger
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(vehicles port.VehicleRepository, logger Logger) DashboardService {
	return &dashboardServiceImpl{vehicles: vehicles, logger: logger}
}

func (s *dashboardServiceImpl) CountVehicles(ctx context.Context) (int, error) {
	n, err := s.vehicles.Count(ctx)
	if err != nil {
		s.logger.Error("Failed to count vehicles", "error", err)
	}
	return n, err
}

func (s *dashboardServiceImpl) CountInProgress(ctx context.Context) (int, error) {
	n, err := s.vehicles.CountInProgress(ctx)
	if err != nil {
		s.logger.Error("Failed to count vehicles in progress", "error", err)
	}
	return n, err
}

func (s *dashboardServiceImpl) RegistrationsByMonth(ctx context.Context, since time.Time) ([]entity.MonthlyRegistrations, error) {
	stamps, err := s.vehicles.ListCreatedSince(ctx, since)
	if err != nil {
		s.logger.Error("Failed to list registrations", "error", err)
		return nil, err
	}
	return groupByMonth(stamps), nil
}

func (s *dashboardServiceImpl) Summary(ctx context.Context) (*DashboardSummary, error) {
	total, err := s.CountVehicles(ctx)
	if err != nil {
		return nil, err
	}
	inProgress, err := s.CountInProgress(ctx)
	if err != nil {
		return nil, err
	}
	registrations, err := s.RegistrationsByMonth(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	return &DashboardSummary{
		TotalVehicles: total,
		InProgress:    inProgress,
		Registrations: registrations,
	}, nil
}

// groupByMonth counts timestamps per UTC calendar month, oldest first
func groupByMonth(stamps []time.Time) []entity.MonthlyRegistrations {
	type key struct{ year, month int }
	counts := make(map[key]int)
	for _, t := range stamps {
		t = t.UTC()
		counts[key{t.Year(), int(t.Month())}]++
	}

	out := make([]entity.MonthlyRegistrations, 0, len(counts))
	for k, n := range counts {
		out = append(out, entity.MonthlyRegistrations{Year: k.year, Month: k.month, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}
