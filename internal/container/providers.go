package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/vehicle-service-tracker/internal/application/dispatcher"
	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/application/service"
	"github.com/garyjia/vehicle-service-tracker/internal/application/workflow"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/event"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/repository"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/vehicle-service-tracker/internal/infrastructure/worker"
	"github.com/garyjia/vehicle-service-tracker/internal/metrics"
	"github.com/garyjia/vehicle-service-tracker/pkg/database"
	"github.com/garyjia/vehicle-service-tracker/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqldb.DB
	// Applied is the number of migrations run while opening
	Applied int
}

// ProvideDatabase opens the connection and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(cfg.Config, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(conn, logger).Run(cfg.MigrationsDir)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqldb.FromDatabase(conn, logger),
		Applied:        applied,
	}, nil
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	States        port.StateRepository
	Transitions   port.TransitionRepository
	Comments      port.StateCommentRepository
	Vehicles      port.VehicleRepository
	History       port.HistoryRepository
	Brands        port.BrandRepository
	VehicleTypes  port.VehicleTypeRepository
	Models        port.VehicleModelRepository
	Colors        port.ColorRepository
	Users         port.UserRepository
	RefreshTokens port.RefreshTokenRepository
}

// ProvideRepositories creates every repository over one transaction-aware handle.
func ProvideRepositories(db *sqldb.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	return &RepositoryBundle{
		States:        repository.NewStateRepository(db, logger),
		Transitions:   repository.NewTransitionRepository(db, logger),
		Comments:      repository.NewStateCommentRepository(db, logger),
		Vehicles:      repository.NewVehicleRepository(db, logger),
		History:       repository.NewHistoryRepository(db, logger),
		Brands:        repository.NewBrandRepository(db, logger),
		VehicleTypes:  repository.NewVehicleTypeRepository(db, logger),
		Models:        repository.NewVehicleModelRepository(db, logger),
		Colors:        repository.NewColorRepository(db, logger),
		Users:         repository.NewUserRepository(db, logger),
		RefreshTokens: repository.NewRefreshTokenRepository(db, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher and registers the audit log
// for every event type.
func ProvideDispatcher(cfg EventsConfig, logger *zap.Logger) dispatcher.Dispatcher {
	kv := utils.NewKVLogger(logger.Named("events"))
	d := dispatcher.NewDispatcher(
		dispatcher.WithWorkers(cfg.Workers),
		dispatcher.WithLogger(kv),
	)

	audit := dispatcher.AuditHandler(kv)
	for _, t := range []event.Type{
		event.TypeVehicleCreated,
		event.TypeVehicleStateChanged,
		event.TypeVehicleDeleted,
		event.TypeTransitionRejected,
		event.TypeCatalogChanged,
	} {
		d.SubscribeNamed(t, "audit", audit)
	}
	return d
}

// ProvideMetrics creates the registry and subscribes its counters to the dispatcher.
func ProvideMetrics(conn *database.DB, d dispatcher.Dispatcher) (*metrics.Metrics, error) {
	m := metrics.New()
	if err := m.RegisterDB(conn.DB, conn.Dialect().String()); err != nil {
		return nil, fmt.Errorf("failed to register database metrics: %w", err)
	}
	m.Subscribe(d)
	return m, nil
}

// WorkflowDeps holds dependencies for the lifecycle engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the lifecycle engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.LifecycleEngine, error) {
	if deps == nil || deps.Repos == nil || deps.TxManager == nil {
		return nil, fmt.Errorf("workflow dependencies are incomplete")
	}

	return workflow.NewEngine(
		workflow.Repositories{
			States:      deps.Repos.States,
			Transitions: deps.Repos.Transitions,
			Comments:    deps.Repos.Comments,
			Vehicles:    deps.Repos.Vehicles,
			History:     deps.Repos.History,
		},
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(utils.NewKVLogger(deps.Logger.Named("workflow"))),
	), nil
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Auth      service.AuthService
	Vehicles  service.VehicleService
	Catalog   service.CatalogService
	Dashboard service.DashboardService
	Export    service.ExportService
}

// ServiceDeps holds dependencies for application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Lifecycle  workflow.LifecycleEngine
	Dispatcher dispatcher.Dispatcher
	Auth       AuthConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Lifecycle == nil {
		return nil, fmt.Errorf("service dependencies are incomplete")
	}
	r := deps.Repos
	log := utils.NewKVLogger(deps.Logger.Named("service"))

	return &ServiceBundle{
		Auth: service.NewAuthService(r.Users, r.RefreshTokens, deps.TxManager, service.AuthConfig{
			Secret:          deps.Auth.Secret,
			Issuer:          deps.Auth.Issuer,
			AccessTokenTTL:  deps.Auth.AccessTokenTTL,
			RefreshTokenTTL: deps.Auth.RefreshTokenTTL,
			BcryptCost:      deps.Auth.BcryptCost,
		}, log),
		Vehicles: service.NewVehicleService(
			r.Vehicles, r.History, r.Models, r.Colors,
			deps.Lifecycle, deps.TxManager, deps.Dispatcher, log,
		),
		Catalog: service.NewCatalogService(service.CatalogRepositories{
			Brands:      r.Brands,
			Types:       r.VehicleTypes,
			Models:      r.Models,
			Colors:      r.Colors,
			States:      r.States,
			Transitions: r.Transitions,
			Comments:    r.Comments,
		}, deps.TxManager, deps.Lifecycle, deps.Dispatcher, log),
		Dashboard: service.NewDashboardService(r.Vehicles, log),
		Export:    service.NewExportService(deps.Lifecycle, r.Vehicles, r.Users, r.Comments, log),
	}, nil
}

// ProvideWorkers creates the worker manager and registers background jobs.
func ProvideWorkers(cfg MaintenanceConfig, purger worker.TokenPurger, logger *zap.Logger) *worker.WorkerManager {
	m := worker.NewWorkerManager(logger.Named("workers"))
	m.Register(worker.NewTokenCleanupWorker(worker.TokenCleanupWorkerConfig{
		Interval: cfg.TokenCleanupInterval,
	}, purger, logger.Named("token_cleanup")))
	return m
}
