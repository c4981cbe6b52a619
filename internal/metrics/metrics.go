// Package metrics exposes Prometheus collectors for the lifecycle and the HTTP surface
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/dispatcher"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vehicle_tracker"

// Metrics owns a registry and the collectors registered on it
type Metrics struct {
	registry *prometheus.Registry

	stateTransitions    *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	vehiclesCreated     prometheus.Counter
	vehiclesDeleted     prometheus.Counter
	catalogChanges      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, including Go runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vehicle_state_transitions_total",
			Help: "Total number of applied vehicle state transitions",
		}, []string{"from_state", "to_state"}),

		transitionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vehicle_state_transitions_rejected_total",
			Help: "Total number of rejected state change requests by reason",
		}, []string{"reason"}),

		vehiclesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vehicles_created_total",
			Help: "Total number of registered vehicles",
		}),

		vehiclesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vehicles_deleted_total",
			Help: "Total number of deleted vehicles",
		}),

		catalogChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_changes_total",
			Help:      "Total number of lifecycle catalog changes by kind",
		}, []string{"kind"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		m.stateTransitions,
		m.transitionsRejected,
		m.vehiclesCreated,
		m.vehiclesDeleted,
		m.catalogChanges,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing /metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterDB exports connection pool statistics of db
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// ObserveHTTP records one served request. path is the route template, not the raw URL.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Subscribe wires the lifecycle counters to domain events
func (m *Metrics) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeVehicleStateChanged, "metrics.state_changed", func(_ context.Context, evt *event.Event) error {
		m.stateTransitions.WithLabelValues(
			label(evt.GetPayloadString(event.PayloadFromState)),
			label(evt.GetPayloadString(event.PayloadToState)),
		).Inc()
		return nil
	})

	d.SubscribeNamed(event.TypeTransitionRejected, "metrics.transition_rejected", func(_ context.Context, evt *event.Event) error {
		m.transitionsRejected.WithLabelValues(label(evt.GetPayloadString(event.PayloadReason))).Inc()
		return nil
	})

	d.SubscribeNamed(event.TypeVehicleCreated, "metrics.vehicle_created", func(context.Context, *event.Event) error {
		m.vehiclesCreated.Inc()
		return nil
	})

	d.SubscribeNamed(event.TypeVehicleDeleted, "metrics.vehicle_deleted", func(context.Context, *event.Event) error {
		m.vehiclesDeleted.Inc()
		return nil
	})

	d.SubscribeNamed(event.TypeCatalogChanged, "metrics.catalog_changed", func(_ context.Context, evt *event.Event) error {
		m.catalogChanges.WithLabelValues(label(evt.GetPayloadString(event.PayloadKind))).Inc()
		return nil
	})
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
