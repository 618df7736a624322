package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Retry    RetryConfig    `mapstructure:"retry"    validate:"required"`
	Health   HealthConfig   `mapstructure:"health"`
	Log      LogConfig      `mapstructure:"log"      validate:"required"`
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
}

// DatabaseConfig contains the connection settings read once at startup.
type DatabaseConfig struct {
	// Driver selects the backend: "postgres" or "sqlite".
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`

	Host     string `mapstructure:"host"     validate:"required_if=Driver postgres"`
	Port     int    `mapstructure:"port"     validate:"gte=0,lt=65536"`
	User     string `mapstructure:"user"     validate:"required_if=Driver postgres"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"     validate:"required_if=Driver postgres"`

	// Path is the database file for the sqlite driver; ":memory:" is allowed.
	Path string `mapstructure:"path" validate:"required_if=Driver sqlite"`

	// Encrypt requests TLS. TrustServerCertificate skips certificate
	// verification when Encrypt is set.
	Encrypt                bool `mapstructure:"encrypt"`
	TrustServerCertificate bool `mapstructure:"trust_server_certificate"`

	PoolMin        int           `mapstructure:"pool_min"        validate:"gte=0,ltefield=PoolMax"`
	PoolMax        int           `mapstructure:"pool_max"        validate:"gt=0"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"    validate:"gte=0"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
}

// RetryConfig controls the query executor's retry policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `mapstructure:"base_delay"   validate:"gt=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay"    validate:"gtefield=BaseDelay"`
}

// HealthConfig controls the background pool health probe.
// An empty Schedule disables it.
type HealthConfig struct {
	Schedule    string        `mapstructure:"schedule"`
	PingTimeout time.Duration `mapstructure:"ping_timeout" validate:"gte=0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ServerConfig holds the operational HTTP listener settings.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,gt=0,lt=65536"`
}

// SSLMode maps the encrypt and trust flags onto a libpq sslmode.
func (c *DatabaseConfig) SSLMode() string {
	switch {
	case !c.Encrypt:
		return "disable"
	case c.TrustServerCertificate:
		return "require"
	default:
		return "verify-full"
	}
}

// DSN returns the PostgreSQL connection URL.
func (c *DatabaseConfig) DSN() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode())
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Addr returns the operational listener address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
