package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/dispatcher"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_CountsLifecycleEvents(t *testing.T) {
	m := New()
	d := dispatcher.NewDispatcher()
	defer d.Close()
	m.Subscribe(d)

	ctx := context.Background()
	changed := event.NewEvent(event.TypeVehicleStateChanged, 1, 1, map[string]interface{}{
		event.PayloadFromState: "INI",
		event.PayloadToState:   "LAV",
	})
	require.NoError(t, d.Dispatch(ctx, changed))
	require.NoError(t, d.Dispatch(ctx, changed))
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeVehicleCreated, 1, 1, nil)))
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeTransitionRejected, 1, 1,
		map[string]interface{}{event.PayloadReason: "invalid_transition"})))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stateTransitions.WithLabelValues("INI", "LAV")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vehiclesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsRejected.WithLabelValues("invalid_transition")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.vehiclesDeleted))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/api/vehicles/:id", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTP(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `vehicle_tracker_http_requests_total{method="GET",path="/api/vehicles/:id",status="200"} 1`))
	assert.True(t, strings.Contains(body, `path="unmatched"`))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
