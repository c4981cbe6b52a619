// Package http exposes the application services over a gin router.
// Handlers translate requests into service calls and domain errors into status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/vehicle-service-tracker/internal/application/service"
	"github.com/garyjia/vehicle-service-tracker/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RequestObserver records request outcomes, e.g. as Prometheus series
type RequestObserver interface {
	ObserveHTTP(method, path string, status int, elapsed time.Duration)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// LoginRPS and LoginBurst bound credential endpoints per client IP.
	// A zero LoginRPS disables the limit.
	LoginRPS   float64
	LoginBurst int
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		LoginRPS:     1,
		LoginBurst:   5,
	}
}

// Services bundles what the handlers call into
type Services struct {
	Auth      service.AuthService
	Vehicles  service.VehicleService
	Catalog   service.CatalogService
	Dashboard service.DashboardService
	Export    service.ExportService
	Lifecycle workflow.LifecycleEngine
}

// Option customizes the server
type Option func(*Server)

// WithMetrics records every request and serves the registry on GET /metrics
func WithMetrics(observer RequestObserver, handler http.Handler) Option {
	return func(s *Server) {
		s.observer = observer
		s.metricsHandler = handler
	}
}

// Server is the HTTP server adapter
type Server struct {
	config         ServerConfig
	httpServer     *http.Server
	router         *gin.Engine
	services       Services
	observer       RequestObserver
	metricsHandler http.Handler
	logger         Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	if s.observer != nil {
		s.router.Use(metricsMiddleware(s.observer))
	}
	s.router.Use(s.loggingMiddleware())
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.metricsHandler != nil {
		s.router.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	auth := s.router.Group("/auth")
	{
		limited := newIPRateLimiter(s.config.LoginRPS, s.config.LoginBurst)
		auth.POST("/register", h.Register)
		auth.POST("/login", limited.middleware(), h.Login)
		auth.POST("/refresh", limited.middleware(), h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", authMiddleware(s.services.Auth), h.Me)
	}

	api := s.router.Group("/api", authMiddleware(s.services.Auth))
	{
		// Lifecycle catalog
		api.GET("/states", h.ListStates)
		api.POST("/states", h.CreateState)
		api.GET("/states/:id/comments", h.GetStateComments)
		api.POST("/states/:id/comments", h.CreateStateComment)
		api.GET("/states/:id/transitions", h.ListTransitionsFrom)
		api.GET("/transitions", h.ListTransitions)
		api.POST("/transitions", h.CreateTransition)

		// Vehicles and their lifecycle
		api.GET("/vehicles", h.ListVehicles)
		api.POST("/vehicles", h.CreateVehicle)
		api.GET("/vehicles/:id", h.GetVehicle)
		api.PUT("/vehicles/:id", h.UpdateVehicle)
		api.DELETE("/vehicles/:id", h.DeleteVehicle)
		api.GET("/vehicles/:id/allowed_transitions", h.GetAllowedTransitions)
		api.GET("/vehicles/:id/state", h.GetCurrentState)
		api.PUT("/vehicles/:id/state", h.ChangeState)
		api.GET("/vehicles/:id/state_history", h.GetStateHistory)
		api.GET("/vehicles/:id/state_history/verify", h.VerifyStateHistory)
		api.GET("/vehicles/:id/state_history/export", h.ExportStateHistory)

		// Vehicle catalog
		api.GET("/brands", h.ListBrands)
		api.POST("/brands", h.CreateBrand)
		api.GET("/brands/:id", h.GetBrand)
		api.PUT("/brands/:id", h.UpdateBrand)
		api.DELETE("/brands/:id", h.DeleteBrand)
		api.GET("/vehicle_types", h.ListVehicleTypes)
		api.POST("/vehicle_types", h.CreateVehicleType)
		api.GET("/vehicle_types/:id", h.GetVehicleType)
		api.PUT("/vehicle_types/:id", h.UpdateVehicleType)
		api.DELETE("/vehicle_types/:id", h.DeleteVehicleType)
		api.GET("/models", h.ListVehicleModels)
		api.POST("/models", h.CreateVehicleModel)
		api.GET("/models/:id", h.GetVehicleModel)
		api.PUT("/models/:id", h.UpdateVehicleModel)
		api.DELETE("/models/:id", h.DeleteVehicleModel)
		api.GET("/colors", h.ListColors)
		api.POST("/colors", h.CreateColor)
		api.GET("/colors/:id", h.GetColor)
		api.PUT("/colors/:id", h.UpdateColor)
		api.DELETE("/colors/:id", h.DeleteColor)

		// Dashboard
		api.GET("/dashboard", h.DashboardSummary)
		api.GET("/dashboard/vehicles/count", h.CountVehicles)
		api.GET("/dashboard/vehicles/in_progress", h.CountInProgress)
		api.GET("/dashboard/vehicles/registrations", h.RegistrationsByMonth)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
