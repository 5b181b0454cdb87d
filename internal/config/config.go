package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/daap14/billstore/internal/store"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"VERSION" default:"dev"`

	DatabaseURL             string        `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns        int32         `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMinConns        int32         `envconfig:"DATABASE_MIN_CONNS" default:"0"`
	DatabaseMaxConnLifetime time.Duration `envconfig:"DATABASE_MAX_CONN_LIFETIME" default:"1h"`
	DatabaseMaxConnIdleTime time.Duration `envconfig:"DATABASE_MAX_CONN_IDLE_TIME" default:"30m"`
	DatabaseTLSPermissive   bool          `envconfig:"DATABASE_TLS_PERMISSIVE" default:"false"`
	DatabaseLogLevel        string        `envconfig:"DATABASE_LOG_LEVEL" default:"warn"`
	MigrateOnStart          bool          `envconfig:"MIGRATE_ON_START" default:"true"`

	CryptKey                 store.Secret `envconfig:"CRYPT_KEY" required:"true"`
	JWTSecret                store.Secret `envconfig:"JWT_SECRET" required:"true"`
	MultiOrganizationEnabled bool         `envconfig:"MULTI_ORGANIZATION_ENABLED" default:"false"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PoolConfig returns the connection pool settings.
func (c *Config) PoolConfig() store.PoolConfig {
	return store.PoolConfig{
		URL:             c.DatabaseURL,
		MaxConns:        c.DatabaseMaxConns,
		MinConns:        c.DatabaseMinConns,
		MaxConnLifetime: c.DatabaseMaxConnLifetime,
		MaxConnIdleTime: c.DatabaseMaxConnIdleTime,
		TLSPermissive:   c.DatabaseTLSPermissive,
		QueryLogLevel:   c.DatabaseLogLevel,
	}
}

// Settings returns the settings shared by domain services.
func (c *Config) Settings() store.Settings {
	return store.Settings{
		CryptKey:                 c.CryptKey,
		JWTSecret:                c.JWTSecret,
		MultiOrganizationEnabled: c.MultiOrganizationEnabled,
	}
}
