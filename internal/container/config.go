// Package container provides dependency injection and lifecycle management
// for the vehicle service tracker.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/vehicle-service-tracker/pkg/database"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig

	Server ServerConfig

	Auth AuthConfig

	// Events configures the dispatcher's async pool
	Events EventsConfig

	Maintenance MaintenanceConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	database.Config

	// MigrationsDir replaces the embedded migrations when not empty
	MigrationsDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds token settings and the login rate limit.
type AuthConfig struct {
	Secret          []byte
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	// LoginRPS and LoginBurst bound login and refresh attempts per client IP
	LoginRPS   float64
	LoginBurst int
}

// EventsConfig holds dispatcher settings.
type EventsConfig struct {
	Workers int
}

// MaintenanceConfig holds background worker settings.
type MaintenanceConfig struct {
	// TokenCleanupInterval is how often expired refresh tokens are purged
	TokenCleanupInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
// The JWT secret is left empty and must be supplied.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Config: database.Config{
				Driver:          string(database.SQLite),
				Path:            "data/vehicles.db",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:          "vehicle-service-tracker",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			BcryptCost:      10,
			LoginRPS:        1,
			LoginBurst:      5,
		},
		Events: EventsConfig{
			Workers: 4,
		},
		Maintenance: MaintenanceConfig{
			TokenCleanupInterval: time.Hour,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if _, err := database.DialectFor(c.Database.Driver); err != nil {
		return err
	}
	if len(c.Auth.Secret) == 0 {
		return fmt.Errorf("auth secret is required")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token ttls must be positive")
	}
	if c.Maintenance.TokenCleanupInterval <= 0 {
		return fmt.Errorf("maintenance.token_cleanup_interval must be positive")
	}
	return nil
}
