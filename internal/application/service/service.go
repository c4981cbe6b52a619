package service

import (
	"context"

	"github.com/garyjia/vehicle-service-tracker/internal/application/dispatcher"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// VehicleInitializer assigns the initial lifecycle state to a freshly created vehicle
type VehicleInitializer interface {
	InitializeVehicleState(ctx context.Context, vehicleID, userID int64) (int64, error)
}

// CatalogInvalidator drops cached views of the state catalog
type CatalogInvalidator interface {
	InvalidateCatalog()
}

func publish(ctx context.Context, d dispatcher.Dispatcher, evt *event.Event) {
	if d != nil {
		d.DispatchAsync(ctx, evt)
	}
}
