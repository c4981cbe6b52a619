package config

import (
	"github.com/garyjia/vehicle-service-tracker/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	cleanup := c.Maintenance.TokenCleanupInterval
	if cleanup <= 0 {
		cleanup = container.DefaultConfig().Maintenance.TokenCleanupInterval
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Config:        c.DatabaseOptions(),
			MigrationsDir: c.Database.MigrationsDir,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Auth: container.AuthConfig{
			Secret:          []byte(c.Auth.JWTSecret),
			Issuer:          c.Auth.Issuer,
			AccessTokenTTL:  c.Auth.AccessTokenTTL,
			RefreshTokenTTL: c.Auth.RefreshTokenTTL,
			BcryptCost:      c.Auth.BcryptCost,
			LoginRPS:        c.Auth.LoginRateLimit.RPS,
			LoginBurst:      c.Auth.LoginRateLimit.Burst,
		},
		Events: container.EventsConfig{
			Workers: c.Events.Workers,
		},
		Maintenance: container.MaintenanceConfig{
			TokenCleanupInterval: cleanup,
		},
	}
}
