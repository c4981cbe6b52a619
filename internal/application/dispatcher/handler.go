package dispatcher

import (
	"context"

	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// AuditHandler logs every event it receives as one structured line
func AuditHandler(logger Logger) Handler {
	return func(_ context.Context, evt *event.Event) error {
		keysAndValues := []interface{}{
			"event_id", evt.ID,
			"event_type", evt.Type.String(),
			"vehicle_id", evt.VehicleID,
			"user_id", evt.UserID,
		}
		for k, v := range evt.Payload {
			keysAndValues = append(keysAndValues, k, v)
		}
		logger.Info("Audit event", keysAndValues...)
		return nil
	}
}
