package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/vehicle-service-tracker/internal/application/dispatcher"
	"github.com/garyjia/vehicle-service-tracker/internal/application/workflow"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/worker"
	httpapi "github.com/garyjia/vehicle-service-tracker/internal/interfaces/http"
	"github.com/garyjia/vehicle-service-tracker/internal/metrics"
	"github.com/garyjia/vehicle-service-tracker/pkg/database"
	"github.com/garyjia/vehicle-service-tracker/pkg/utils"
)

// Container owns every long-lived component. Initialization is ordered and
// teardown runs in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Data
	conn         *database.DB
	db           *sqldb.DB
	repositories *RepositoryBundle

	// Application
	dispatcher dispatcher.Dispatcher
	metrics    *metrics.Metrics
	lifecycle  workflow.LifecycleEngine
	services   *ServiceBundle

	workers        *worker.WorkerManager
	withoutWorkers bool

	mu     sync.Mutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// Option customizes the container
type Option func(*Container)

// WithoutWorkers skips background jobs, for one-shot commands
func WithoutWorkers() Option {
	return func(c *Container) {
		c.withoutWorkers = true
	}
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{config: cfg, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components in dependency order:
// database and repositories, dispatcher and metrics, lifecycle engine,
// services, then workers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := c.initDispatcher(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	if err := c.initWorkflowAndServices(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if !c.withoutWorkers {
		c.workers = ProvideWorkers(c.config.Maintenance, c.services.Auth, c.logger)
		if err := c.workers.StartAll(ctx); err != nil {
			c.teardown()
			return fmt.Errorf("failed to start workers: %w", err)
		}
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized. Callers hold c.mu.
func (c *Container) teardown() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// Drains queued async handlers before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.conn = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("container closed with %d errors: %v", len(errs), errs)
	}
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.conn == nil:
		set("database", false, "not initialized")
	default:
		if err := c.conn.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, c.conn.Dialect().String())
		}
	}

	set("dispatcher", c.dispatcher != nil, "")

	switch {
	case c.withoutWorkers:
		set("workers", true, "disabled")
	case c.workers == nil:
		set("workers", false, "not initialized")
	default:
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()))
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn = bundle.Conn
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos

	c.logger.Info("Database initialized",
		zap.String("driver", c.conn.Dialect().String()),
		zap.Int("migrations_applied", bundle.Applied))
	return nil
}

func (c *Container) initDispatcher() error {
	c.dispatcher = ProvideDispatcher(c.config.Events, c.logger)

	m, err := ProvideMetrics(c.conn, c.dispatcher)
	if err != nil {
		return err
	}
	c.metrics = m
	return nil
}

func (c *Container) initWorkflowAndServices() error {
	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.lifecycle = engine

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Lifecycle:  engine,
		Dispatcher: c.dispatcher,
		Auth:       c.config.Auth,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

// HTTPServer builds the API server over the started container.
func (c *Container) HTTPServer() (*httpapi.Server, error) {
	if !c.ready.Load() {
		return nil, fmt.Errorf("container not started")
	}

	srv := c.config.Server
	return httpapi.NewServer(httpapi.ServerConfig{
		Host:         srv.Host,
		Port:         srv.Port,
		ReadTimeout:  srv.ReadTimeout,
		WriteTimeout: srv.WriteTimeout,
		LoginRPS:     c.config.Auth.LoginRPS,
		LoginBurst:   c.config.Auth.LoginBurst,
	}, httpapi.Services{
		Auth:      c.services.Auth,
		Vehicles:  c.services.Vehicles,
		Catalog:   c.services.Catalog,
		Dashboard: c.services.Dashboard,
		Export:    c.services.Export,
		Lifecycle: c.lifecycle,
	}, utils.NewKVLogger(c.logger.Named("http")), httpapi.WithMetrics(c.metrics, c.metrics.Handler())), nil
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Lifecycle returns the vehicle lifecycle engine.
func (c *Container) Lifecycle() workflow.LifecycleEngine {
	return c.lifecycle
}

// Services returns the application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Metrics returns the Prometheus collectors.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
