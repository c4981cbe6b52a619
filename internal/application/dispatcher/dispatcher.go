package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"

	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
)

const defaultWorkerCount = 8

// ErrClosed is returned once Close has been called
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher routes domain events to the handlers subscribed to their type
type Dispatcher interface {
	// Subscribe registers a handler under a generated name (handler-N). N is
	// never reused, even after Unsubscribe.
	Subscribe(eventType event.Type, handler Handler)
	SubscribeNamed(eventType event.Type, name string, handler Handler)
	// Unsubscribe drops every handler registered under name for eventType
	Unsubscribe(eventType event.Type, name string)

	// Dispatch runs handlers in registration order and stops at the first failure
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync queues each handler on the worker pool and returns at once.
	// Handlers keep the values of ctx but not its cancellation.
	DispatchAsync(ctx context.Context, evt *event.Event)

	ListHandlers(eventType event.Type) []HandlerInfo

	// Close rejects new events and blocks until queued handlers finish
	Close() error
}

// Logger is the logging surface the dispatcher needs
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{}) {}

func (nopLogger) Error(string, ...interface{}) {}

type eventDispatcher struct {
	logger  Logger
	workers int

	mu     sync.RWMutex
	routes map[event.Type][]HandlerInfo
	seq    int

	pool   pond.Pool
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets the logger used for subscription changes and handler failures
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithWorkers bounds how many async handlers run at the same time
func WithWorkers(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDispatcher creates a dispatcher with its worker pool already running
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		logger:  nopLogger{},
		workers: defaultWorkerCount,
		routes:  make(map[event.Type][]HandlerInfo),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.pool = pond.NewPool(d.workers)
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.add(eventType, "", handler)
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.add(eventType, name, handler)
}

func (d *eventDispatcher) add(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	if name == "" {
		name = fmt.Sprintf("handler-%d", d.seq)
		d.seq++
	}
	d.routes[eventType] = append(d.routes[eventType], HandlerInfo{Name: name, EventType: eventType, Handler: handler})
	d.mu.Unlock()

	d.logger.Info("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.mu.Lock()
	d.routes[eventType] = slices.DeleteFunc(d.routes[eventType], func(h HandlerInfo) bool {
		return h.Name == name
	})
	d.mu.Unlock()

	d.logger.Info("Handler unregistered", "event_type", eventType, "handler_name", name)
}

// snapshot copies the route so handlers run without holding the lock
func (d *eventDispatcher) snapshot(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.routes[eventType])
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	for _, h := range d.snapshot(evt.Type) {
		if err := d.run(ctx, evt, h); err != nil {
			return fmt.Errorf("handler %s failed: %w", h.Name, err)
		}
	}
	return nil
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logger.Error("Event dropped", "event_type", evt.Type, "event_id", evt.ID, "error", ErrClosed)
		return
	}

	detached := context.WithoutCancel(ctx)
	for _, h := range d.snapshot(evt.Type) {
		if err := d.pool.Go(func() { _ = d.run(detached, evt, h) }); err != nil {
			d.logger.Error("Event dropped",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", h.Name,
				"error", err,
			)
		}
	}
}

// ListHandlers describes the handlers of eventType without exposing the functions
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	routes := d.snapshot(eventType)
	for i := range routes {
		routes[i].Handler = nil
	}
	return routes
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	d.logger.Info("Draining event handlers")
	d.pool.StopAndWait()
	return nil
}

// run invokes one handler, turning a panic into an error. Failures are logged here.
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, h HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			d.logger.Error("Event handler failed",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", h.Name,
				"error", err,
			)
		}
	}()
	return h.Handler(ctx, evt)
}
