package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv sets environment variables for the duration of the test.
func setupEnv(t *testing.T, envVars map[string]string) {
	t.Helper()
	for name, value := range envVars {
		t.Setenv(name, value)
	}
}

// TestLoadDefaults verifies the defaults applied when nothing is configured.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err, "Load() should succeed with defaults only")
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 10, cfg.Database.PoolMax)
	assert.Equal(t, 15*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.Database.RequestTimeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 5*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Health.Schedule)
}

// TestLoadFromEnv verifies that environment variables override defaults.
func TestLoadFromEnv(t *testing.T) {
	setupEnv(t, map[string]string{
		"CONNKEEPER_DATABASE_HOST":                     "db.internal",
		"CONNKEEPER_DATABASE_PORT":                     "6543",
		"CONNKEEPER_DATABASE_USER":                     "app",
		"CONNKEEPER_DATABASE_PASSWORD":                 "hunter2",
		"CONNKEEPER_DATABASE_NAME":                     "orders",
		"CONNKEEPER_DATABASE_ENCRYPT":                  "true",
		"CONNKEEPER_DATABASE_TRUST_SERVER_CERTIFICATE": "true",
		"CONNKEEPER_DATABASE_POOL_MIN":                 "2",
		"CONNKEEPER_DATABASE_POOL_MAX":                 "20",
		"CONNKEEPER_DATABASE_REQUEST_TIMEOUT":          "2s",
		"CONNKEEPER_RETRY_MAX_ATTEMPTS":                "5",
		"CONNKEEPER_HEALTH_SCHEDULE":                   "@every 30s",
		"CONNKEEPER_LOG_LEVEL":                         "debug",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "app", cfg.Database.User)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, "orders", cfg.Database.Name)
	assert.True(t, cfg.Database.Encrypt)
	assert.True(t, cfg.Database.TrustServerCertificate)
	assert.Equal(t, 2, cfg.Database.PoolMin)
	assert.Equal(t, 20, cfg.Database.PoolMax)
	assert.Equal(t, 2*time.Second, cfg.Database.RequestTimeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "@every 30s", cfg.Health.Schedule)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// TestLoadValidationErrors verifies that invalid values are rejected.
func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown driver",
			env:     map[string]string{"CONNKEEPER_DATABASE_DRIVER": "oracle"},
			wantErr: "Driver",
		},
		{
			name:    "zero attempts",
			env:     map[string]string{"CONNKEEPER_RETRY_MAX_ATTEMPTS": "0"},
			wantErr: "MaxAttempts",
		},
		{
			name: "max delay below base delay",
			env: map[string]string{
				"CONNKEEPER_RETRY_BASE_DELAY": "2s",
				"CONNKEEPER_RETRY_MAX_DELAY":  "1s",
			},
			wantErr: "MaxDelay",
		},
		{
			name: "pool min above pool max",
			env: map[string]string{
				"CONNKEEPER_DATABASE_POOL_MIN": "8",
				"CONNKEEPER_DATABASE_POOL_MAX": "4",
			},
			wantErr: "PoolMin",
		},
		{
			name:    "sqlite without path",
			env:     map[string]string{"CONNKEEPER_DATABASE_DRIVER": "sqlite"},
			wantErr: "Path",
		},
		{
			name:    "invalid log level",
			env:     map[string]string{"CONNKEEPER_LOG_LEVEL": "verbose"},
			wantErr: "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t, tt.env)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestLoadFile verifies reading settings from a YAML file, with env taking precedence.
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connkeeper.yaml")
	content := `
database:
  driver: sqlite
  path: /tmp/app.db
  pool_max: 4
retry:
  max_attempts: 2
  base_delay: 10ms
  max_delay: 50ms
log:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	setupEnv(t, map[string]string{"CONNKEEPER_LOG_LEVEL": "error"})

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/app.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Database.PoolMax)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.MaxDelay)
	assert.Equal(t, "error", cfg.Log.Level, "env should override the file")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestDatabaseConfigDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      DatabaseConfig
		wantMode string
		want     string
	}{
		{
			name: "plaintext",
			cfg: DatabaseConfig{
				Host: "localhost", Port: 5432, User: "app", Password: "pw", Name: "orders",
				ConnectTimeout: 15 * time.Second,
			},
			wantMode: "disable",
			want:     "postgres://app:pw@localhost:5432/orders?connect_timeout=15&sslmode=disable",
		},
		{
			name: "encrypted trusting certificate",
			cfg: DatabaseConfig{
				Host: "db", User: "app", Name: "orders",
				Encrypt: true, TrustServerCertificate: true,
			},
			wantMode: "require",
			want:     "postgres://app:@db:5432/orders?sslmode=require",
		},
		{
			name: "encrypted with verification and escaped password",
			cfg: DatabaseConfig{
				Host: "db", Port: 6432, User: "app", Password: "p@ss/word", Name: "orders",
				Encrypt: true, ConnectTimeout: 200 * time.Millisecond,
			},
			wantMode: "verify-full",
			want:     "postgres://app:p%40ss%2Fword@db:6432/orders?connect_timeout=1&sslmode=verify-full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantMode, tt.cfg.SSLMode())
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
