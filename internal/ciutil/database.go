package ciutil

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/phrazzld/connkeeper/internal/config"
)

// GetTestDatabaseURL returns the PostgreSQL URL integration tests should use.
// It checks CONNKEEPER_TEST_DATABASE_URL and then DATABASE_URL, returning ""
// when neither is set.
func GetTestDatabaseURL(logger *slog.Logger) string {
	dbURL := GetEnvWithFallbacks([]string{EnvTestDatabaseURL, EnvDatabaseURL}, "", logger)
	if dbURL == "" && logger != nil {
		logger.Info("No database URL environment variables found")
	}
	return dbURL
}

// DatabaseConfigFromURL converts a PostgreSQL URL or keyword/value DSN into
// a DatabaseConfig with small pool limits suited to tests.
func DatabaseConfigFromURL(dbURL string) (config.DatabaseConfig, error) {
	pc, err := pgconn.ParseConfig(dbURL)
	if err != nil {
		return config.DatabaseConfig{}, fmt.Errorf("failed to parse database URL: %w", err)
	}

	return config.DatabaseConfig{
		Driver:                 "postgres",
		Host:                   pc.Host,
		Port:                   int(pc.Port),
		User:                   pc.User,
		Password:               pc.Password,
		Name:                   pc.Database,
		Encrypt:                pc.TLSConfig != nil,
		TrustServerCertificate: pc.TLSConfig != nil && pc.TLSConfig.InsecureSkipVerify,
		PoolMin:                0,
		PoolMax:                4,
		IdleTimeout:            30 * time.Second,
		ConnectTimeout:         5 * time.Second,
		RequestTimeout:         30 * time.Second,
	}, nil
}
