package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/vehicle-service-tracker/pkg/database"
	"github.com/garyjia/vehicle-service-tracker/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Events      EventsConfig      `mapstructure:"events"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// AuthConfig holds token and password settings
type AuthConfig struct {
	JWTSecret       string          `mapstructure:"jwt_secret"`
	Issuer          string          `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration   `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration   `mapstructure:"refresh_token_ttl"`
	BcryptCost      int             `mapstructure:"bcrypt_cost"`
	LoginRateLimit  RateLimitConfig `mapstructure:"login_rate_limit"`
}

// RateLimitConfig is a token bucket per client IP
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// EventsConfig holds dispatcher settings
type EventsConfig struct {
	Workers int `mapstructure:"workers"`
}

// MaintenanceConfig holds background job settings
type MaintenanceConfig struct {
	TokenCleanupInterval time.Duration `mapstructure:"token_cleanup_interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional YAML file and the environment.
// A .env file in the working directory is read first when present.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv populates the process environment from path without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "data/vehicles.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "vehicle-service-tracker")
	v.SetDefault("auth.access_token_ttl", 30*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.login_rate_limit.rps", 1.0)
	v.SetDefault("auth.login_rate_limit.burst", 5)

	v.SetDefault("events.workers", 4)
	v.SetDefault("maintenance.token_cleanup_interval", time.Hour)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars maps the well-known deployment variables onto config keys
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"auth.jwt_secret": "JWT_SECRET_KEY",
		"database.dsn":    "DATABASE_URL",
		"database.driver": "DATABASE_DRIVER",
		"server.port":     "SERVER_PORT",
		"logger.level":    "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set JWT_SECRET_KEY)")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be positive")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be positive")
	}

	dialect, err := database.DialectFor(c.Database.Driver)
	if err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	switch dialect {
	case database.Postgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %s (set DATABASE_URL)", dialect)
		}
	case database.SQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %s", dialect)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Events.Workers < 0 {
		return fmt.Errorf("events.workers must not be negative")
	}

	return nil
}

// DatabaseOptions converts the database section for pkg/database
func (c *Config) DatabaseOptions() database.Config {
	return database.Config{
		Driver:          c.Database.Driver,
		Path:            c.Database.Path,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// LoggerOptions converts the logger section for utils.NewLogger
func (c *Config) LoggerOptions() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
	}
}
